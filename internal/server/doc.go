// Package server exposes the OCR pipeline over HTTP.
//
// # Routes
//
//	POST    /ocr      run OCR on {"image": "<base64 or data URL>"}
//	OPTIONS /ocr      CORS preflight, 200 with an empty body
//	GET     /health   liveness and engine availability
//	GET     /metrics  prometheus exposition (when enabled)
//
// # Responses
//
// A successful run answers 200 with
//
//	{"success": true, "text": "...", "confidence": 0.923, "invoice": {...}}
//
// where confidence is rounded to three decimals and invoice is present only
// when extraction is enabled. Any failure while decoding, preprocessing or
// recognizing is answered with
//
//	{"success": false, "error": "<message>"}
//
// and status 500. Unknown routes keep fiber's 404.
//
// Every response, including errors and preflights, carries the configured
// Access-Control-Allow-Origin, -Headers and -Methods headers.
//
// # Middleware
//
// Requests pass through request ID assignment, panic recovery, CORS,
// optional OpenTelemetry tracing, structured request logging and optional
// prometheus metrics, in that order.
package server
