package ledkit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/julienschmidt/httprouter"
)

const httpTimeoutsMs = 3000

// StatusServer exposes the engine over HTTP: a snapshot endpoint for
// diagnostics and a token-guarded trigger injection endpoint. Injected
// triggers go through the same dispatcher as physical edges, but skip
// the debounce filter: they are not mechanical bounce.
type StatusServer struct {
	token  string
	engine *Engine
	logger *log.Logger
	server *http.Server

	serverErr chan error
}

func NewStatusServer(addr, token string, engine *Engine, logger *log.Logger) *StatusServer {
	if logger == nil {
		logger = log.Default()
	}

	handler := httprouter.New()
	ss := &StatusServer{
		token:  token,
		engine: engine,
		logger: logger,
	}
	handler.GET("/status", ss.handleStatus)
	handler.GET("/trigger/:switch_id/token/:token", ss.handleTrigger)

	httpTimeout := httpTimeoutsMs * time.Millisecond

	ss.server = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       httpTimeout,
		ReadHeaderTimeout: httpTimeout,
		WriteTimeout:      httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}

	return ss
}

func (ss *StatusServer) Start() error {
	ss.serverErr = make(chan error, 1)

	go func() {
		err := ss.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			ss.logger.Error("status server failed", "err", err)
		}
		ss.serverErr <- err
	}()

	ss.logger.Info("status server listening", "addr", ss.server.Addr)
	return nil
}

func (ss *StatusServer) Close() error {
	return ss.server.Close()
}

func (ss *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := ss.engine.Status()

	w.Header().Add("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(status)
	if err != nil {
		http.Error(w, "failed to encode status", http.StatusInternalServerError)
	}
}

func (ss *StatusServer) handleTrigger(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !strings.EqualFold(p.ByName("token"), ss.token) {
		http.Error(w, "token mismatch", http.StatusUnauthorized)
		return
	}

	switchId, err := strconv.Atoi(p.ByName("switch_id"))
	if err != nil {
		http.Error(w, "bad switch id", http.StatusBadRequest)
		return
	}

	ss.engine.HandleTrigger(switchId)

	w.Header().Add("Content-Type", "application/json")
	encodeErr := json.NewEncoder(w).Encode(ss.engine.Status())
	if encodeErr != nil {
		http.Error(w, "failed to encode status", http.StatusInternalServerError)
	}
}
