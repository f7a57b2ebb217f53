package greeter

import (
	"fmt"
	"net/http"
	"strconv"

	klog "k8s.io/klog/v2"
)

const greetingFormat = "Hello from Flask! Running on container hostname: %s"

// Methods served on the root path. Anything else gets a 405.
const allowedMethods = "GET, HEAD, OPTIONS"

// Greeting formats the response body for the given host name.
func Greeting(hostname string) string {
	return fmt.Sprintf(greetingFormat, hostname)
}

// Handler serves the greeting on "/" and a fixed 404 everywhere else.
type Handler struct {
	hostname HostnameFunc
}

func NewHandler(hostname HostnameFunc) *Handler {
	if hostname == nil {
		hostname = OSHostname
	}
	return &Handler{hostname: hostname}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeText(w, r, http.StatusNotFound, "404 Not Found\n")
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.greet(w, r)
	case http.MethodOptions:
		w.Header().Set("Allow", allowedMethods)
		writeText(w, r, http.StatusOK, "")
	default:
		w.Header().Set("Allow", allowedMethods)
		writeText(w, r, http.StatusMethodNotAllowed, "405 Method Not Allowed\n")
	}
}

func (h *Handler) greet(w http.ResponseWriter, r *http.Request) {
	name, err := resolveHostname(h.hostname)
	if err != nil {
		klog.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeText(w, r, http.StatusInternalServerError, "500 Internal Server Error\n")
		return
	}
	writeText(w, r, http.StatusOK, Greeting(name))
}

func writeText(w http.ResponseWriter, r *http.Request, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(code)
	klog.V(4).Infof("%s %s %s -> %d", r.RemoteAddr, r.Method, r.URL.Path, code)

	if r.Method == http.MethodHead || body == "" {
		return
	}
	_, _ = w.Write([]byte(body))
}
