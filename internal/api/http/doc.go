// Package http exposes the instance registry as a JSON control API.
//
// Routes, mounted under a caller-chosen prefix (the server uses /v1):
//
//	GET    /platform                 platform, supported, version
//	GET    /stats                    instance counts by state
//	GET    /preload?source=          whether source holds a valid record
//	DELETE /preload                  clear the record
//	POST   /instances                create from an InstanceConfig body
//	GET    /instances                list summaries
//	GET    /instances/:id            snapshot
//	DELETE /instances/:id            destroy (idempotent)
//	POST   /instances/:id/{navigate,html,script,show,hide,back,forward,reload,stop,screenshot,wait}
//	GET    /instances/:id/{content,title,url}
//
// Domain errors map onto statuses through StatusFor: invalid config and
// navigation errors are 400, unknown ids 404, destroyed instances 410,
// missing document state 409, script and capture failures 422 and an
// unsupported host 501.
package http
