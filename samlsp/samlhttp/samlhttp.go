// Package samlhttp adapts SPController's host contract (samlsp.Request,
// samlsp.Response) onto net/http and onto goji's web.C-based routing, the
// two host styles a deployment can choose between.
package samlhttp

import (
	"io"
	"net/http"

	"github.com/zenazn/goji/web"

	"github.com/fedletgo/saml/samlsp"
)

// netRequest adapts *http.Request to samlsp.Request.
type netRequest struct {
	r *http.Request
}

func (n *netRequest) Method() string { return n.r.Method }
func (n *netRequest) RawURL() string { return n.r.URL.String() }
func (n *netRequest) QueryParam(name string) string {
	return n.r.URL.Query().Get(name)
}
func (n *netRequest) FormParam(name string) string {
	if err := n.r.ParseForm(); err != nil {
		return ""
	}
	return n.r.Form.Get(name)
}
func (n *netRequest) Body() ([]byte, error) {
	defer n.r.Body.Close()
	return io.ReadAll(n.r.Body)
}

// netResponse adapts http.ResponseWriter to samlsp.Response.
type netResponse struct {
	w http.ResponseWriter
	r *http.Request
}

func (n *netResponse) Redirect(url string, statusCode int) {
	http.Redirect(n.w, n.r, url, statusCode)
}

func (n *netResponse) Write(statusCode int, contentType string, body []byte) {
	n.w.Header().Set("Content-Type", contentType)
	n.w.WriteHeader(statusCode)
	n.w.Write(body)
}

// NewRequest wraps an *http.Request as a samlsp.Request.
func NewRequest(r *http.Request) samlsp.Request { return &netRequest{r: r} }

// NewResponse wraps an http.ResponseWriter/*http.Request pair as a
// samlsp.Response.
func NewResponse(w http.ResponseWriter, r *http.Request) samlsp.Response {
	return &netResponse{w: w, r: r}
}

// GojiHandler adapts a handler written against samlsp.Request/Response to
// goji's web.HandlerFunc signature, so routes can be registered with
// goji.Get/goji.Post directly.
func GojiHandler(handle func(req samlsp.Request, resp samlsp.Response)) web.HandlerFunc {
	return func(c web.C, w http.ResponseWriter, r *http.Request) {
		handle(NewRequest(r), NewResponse(w, r))
	}
}
