// Package document implements the embedded-document surface used on web and
// desktop hosts.
//
// A surface fetches its document through the outbound http client, decodes
// it to UTF-8 (chardet, x/net/html/charset), sniffs its media type
// (mimetype) and parses it into a goquery page model. Non-HTML text bodies
// are rendered as sanitized preformatted text (bluemonday).
//
// Scripts run on a goja runtime owned by a goja_nodejs event loop, one per
// surface, so evaluation is serialized in submission order and timers and
// promise jobs work. Scripts see a small document API:
//
//	document.title                     get and set (setting emits title_change)
//	document.querySelector(sel)        first match or null
//	document.querySelectorAll(sel)     array of matches
//	document.evaluateXPath(expr)       array of {text, html} (htmlquery)
//	location.href                      current address
//	window.postMessage(data)           emits a message event to the host
//
// The surface has no raster, so CaptureScreenshot fails with types.ErrCapture.
package document
