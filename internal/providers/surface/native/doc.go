// Package native adapts a host-bound mobile webview (android.webkit.WebView,
// WKWebView, ArkWeb) to the surface.Adapter contract.
//
// The host binding implements View and ViewProvider and forwards the
// platform callbacks to the Listener it is handed. Script results cross the
// binding as JSON text, the way evaluateJavascript reports them, and are
// decoded with sonic. Snapshots must be PNG.
package native
