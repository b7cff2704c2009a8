/*
Package logging provides the engine's structured application log
(the Logger interface, backed by logrus with optional lumberjack file
rotation) and its Apache-combined-format access log (AccessLogger),
wired together by AccessLogMiddleware around the routing engine's
http.Handler.
*/
package logging
