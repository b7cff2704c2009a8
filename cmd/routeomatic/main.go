// Command routeomatic runs the programmable HTTP routing engine as a
// standalone server: a main listener serving HandleRouting, and an
// optional support listener exposing /metrics and POST /reload.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/cnnlabs/cnn-routeomatic"
	"github.com/cnnlabs/cnn-routeomatic/config"
	"github.com/cnnlabs/cnn-routeomatic/logging"
	"github.com/cnnlabs/cnn-routeomatic/routecfg"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cfg := config.NewConfig(fs)

	if err := cfg.Parse(fs, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if cfg.PrintVersion {
		fmt.Printf("routeomatic version %s (commit: %s)\n", version, commit)
		return
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFilePath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	doc, err := config.LoadDocument(cfg.RoutingDocument)
	if err != nil {
		logger.Errorf("loading routing document: %v", err)
		os.Exit(2)
	}
	applyExtraHeaders(doc, cfg.ExtraHeaders.Values())

	env := &routeomatic.Env{
		Logger:        logger,
		RouteHandlers: map[string]routeomatic.Handler{},
	}

	engine, err := routeomatic.NewEngine(env, routeomatic.DefaultSettings(), doc)
	if err != nil {
		logger.Errorf("building engine: %v", err)
		os.Exit(2)
	}

	accessLog := logging.NewAccessLogger(nil)
	handler := logging.AccessLogMiddleware(accessLog, http.HandlerFunc(engine.HandleRouting))

	errs := make(chan error, 2)

	go func() {
		logger.Infof("listening on %s", cfg.Address)
		errs <- http.ListenAndServe(cfg.Address, handler)
	}()

	if cfg.SupportListener != "" {
		go func() {
			logger.Infof("support listener on %s", cfg.SupportListener)
			errs <- http.ListenAndServe(cfg.SupportListener, engine.SupportHandler(func() (*routecfg.Document, error) {
				return config.LoadDocument(cfg.RoutingDocument)
			}))
		}()
	}

	logger.Errorf("server exiting: %v", <-errs)
}

// applyExtraHeaders folds -header flag values into the document's
// default host headers, so they apply to every host unless a host
// overrides them.
func applyExtraHeaders(doc *routecfg.Document, extra map[string]string) {
	if len(extra) == 0 {
		return
	}
	if doc.HostDefault.Headers == nil {
		doc.HostDefault.Headers = map[string]any{}
	}
	for k, v := range extra {
		doc.HostDefault.Headers[k] = v
	}
}
