// Package api exposes a replay session over HTTP and gRPC.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"Go2NetReplay/internal/engine/manager"
	"Go2NetReplay/internal/model"
	"Go2NetReplay/internal/probe"
	"Go2NetReplay/internal/session"
	"Go2NetReplay/internal/store"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// maxBody bounds ingest and configuration payloads.
const maxBody = 32 << 20

// Submitter queues record batches for coalesced ingestion.
type Submitter interface {
	Submit(sessionID string, records []model.RawRecord) error
}

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	controller *session.Controller
	submitter  Submitter
	logger     logrus.FieldLogger
}

// NewAPIHandler creates the HTTP handlers. When submitter is nil ingested batches are
// applied to the controller synchronously.
func NewAPIHandler(controller *session.Controller, submitter Submitter, logger logrus.FieldLogger) *APIHandler {
	return &APIHandler{controller: controller, submitter: submitter, logger: logger}
}

// NewRouter wires the handlers. gatherer backs /metrics and may be nil.
func NewRouter(h *APIHandler, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthHandler).Methods("GET")
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/timeline", h.timelineHandler).Methods("GET")
	v1.HandleFunc("/view", h.viewHandler).Methods("GET")
	v1.HandleFunc("/overview", h.overviewHandler).Methods("GET")
	v1.HandleFunc("/aggregate/{kind}", h.aggregateHandler).Methods("GET")
	v1.HandleFunc("/events/{id}/interpolate", h.interpolateHandler).Methods("GET")
	v1.HandleFunc("/events/{id}/follow", h.followHandler).Methods("GET")

	v1.HandleFunc("/ingest", h.ingestHandler).Methods("POST")
	v1.HandleFunc("/reset", h.resetHandler).Methods("POST")
	v1.HandleFunc("/session", h.getSessionHandler).Methods("GET")
	v1.HandleFunc("/session", h.putSessionHandler).Methods("PUT")
	v1.HandleFunc("/tags", h.getTagsHandler).Methods("GET")
	v1.HandleFunc("/tags", h.putTagsHandler).Methods("PUT")

	v1.HandleFunc("/player", h.playerHandler).Methods("GET")
	v1.HandleFunc("/player/{action:play|pause}", h.playbackHandler).Methods("POST")
	v1.HandleFunc("/player/seek", h.seekHandler).Methods("POST")
	v1.HandleFunc("/player/rate", h.rateHandler).Methods("POST")
	return r
}

// PlayerState is the playhead as reported by the API.
type PlayerState struct {
	Frame       int     `json:"frame"`
	TotalFrames int     `json:"total_frames"`
	Playing     bool    `json:"playing"`
	Rate        float64 `json:"rate"`
}

func (h *APIHandler) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) timelineHandler(w http.ResponseWriter, r *http.Request) {
	frame, err := h.frame(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.controller.Timeline(frame))
}

func (h *APIHandler) viewHandler(w http.ResponseWriter, r *http.Request) {
	frame, err := h.frame(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.controller.View(frame, q))
}

func (h *APIHandler) overviewHandler(w http.ResponseWriter, r *http.Request) {
	frame, err := h.frame(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.controller.Overview(frame, q))
}

// aggregateHandler serves a single part of the overview.
func (h *APIHandler) aggregateHandler(w http.ResponseWriter, r *http.Request) {
	frame, err := h.frame(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	part, err := overviewPart(h.controller.Overview(frame, q), mux.Vars(r)["kind"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, part)
}

func (h *APIHandler) interpolateHandler(w http.ResponseWriter, r *http.Request) {
	frame, err := h.frame(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	selected, err := boolParam(r, "selected")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	samples, err := h.controller.Interpolate(mux.Vars(r)["id"], frame, selected)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (h *APIHandler) followHandler(w http.ResponseWriter, r *http.Request) {
	frame, err := h.frame(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	target, err := h.controller.Follow(mux.Vars(r)["id"], frame)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"lon": target.Lon(), "lat": target.Lat()})
}

// ingestHandler accepts a feed batch. With a submitter the batch is queued and 202 returned;
// a batch of another session is refused with 409.
func (h *APIHandler) ingestHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request body: %v", err), http.StatusBadRequest)
		return
	}
	batch, err := probe.DecodeBatch(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}

	if h.submitter != nil {
		if err := h.submitter.Submit(batch.SessionID, batch.Records); err != nil {
			code := http.StatusServiceUnavailable
			if errors.Is(err, manager.ErrForeignSession) {
				code = http.StatusConflict
			}
			http.Error(w, fmt.Sprintf("failed to queue records: %v", err), code)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"queued": len(batch.Records)})
		return
	}
	writeJSON(w, http.StatusOK, h.controller.Ingest(batch.Records))
}

func (h *APIHandler) resetHandler(w http.ResponseWriter, r *http.Request) {
	h.controller.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Session())
}

func (h *APIHandler) putSessionHandler(w http.ResponseWriter, r *http.Request) {
	var info model.SessionInfo
	if err := decodeBody(r, &info); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.controller.SetSession(info)
	h.logger.WithFields(logrus.Fields{"session": info.ID, "live": info.Active}).Info("Session updated")
	writeJSON(w, http.StatusOK, h.controller.Session())
}

func (h *APIHandler) getTagsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Tags())
}

func (h *APIHandler) putTagsHandler(w http.ResponseWriter, r *http.Request) {
	var tags []model.Tag
	if err := decodeBody(r, &tags); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.controller.SetTags(tags)
	writeJSON(w, http.StatusOK, h.controller.Tags())
}

func (h *APIHandler) playerHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.playerState())
}

func (h *APIHandler) playbackHandler(w http.ResponseWriter, r *http.Request) {
	if mux.Vars(r)["action"] == "play" {
		h.controller.Player().Play()
	} else {
		h.controller.Player().Pause()
	}
	writeJSON(w, http.StatusOK, h.playerState())
}

func (h *APIHandler) seekHandler(w http.ResponseWriter, r *http.Request) {
	frame, err := strconv.Atoi(r.URL.Query().Get("frame"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid frame: %v", err), http.StatusBadRequest)
		return
	}
	h.controller.Player().Seek(frame)
	writeJSON(w, http.StatusOK, h.playerState())
}

func (h *APIHandler) rateHandler(w http.ResponseWriter, r *http.Request) {
	rate, err := strconv.ParseFloat(r.URL.Query().Get("rate"), 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid rate: %v", err), http.StatusBadRequest)
		return
	}
	if err := h.controller.Player().SetRate(rate); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.playerState())
}

func (h *APIHandler) playerState() PlayerState {
	p := h.controller.Player()
	return PlayerState{
		Frame:       p.Frame(),
		TotalFrames: h.controller.TotalFrames(),
		Playing:     p.Playing(),
		Rate:        p.Rate(),
	}
}

// frame reads the frame parameter, defaulting to the player's sampled frame.
func (h *APIHandler) frame(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("frame")
	if raw == "" {
		return h.controller.Player().SampledFrame(), nil
	}
	frame, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid frame %q", raw)
	}
	return frame, nil
}

// parseQuery maps URL parameters onto a session query. Multi-valued parameters may be
// repeated or comma separated.
func parseQuery(r *http.Request) (session.Query, error) {
	values := r.URL.Query()
	var (
		q   session.Query
		err error
	)
	if q.OnlyActive, err = boolParam(r, "only_active"); err != nil {
		return q, err
	}
	if q.OnlySelected, err = boolParam(r, "only_selected"); err != nil {
		return q, err
	}
	q.Clients = listParam(values["client"])
	q.Tags = listParam(values["tag"])
	q.Category = values.Get("category")
	q.Selected = values.Get("selected")
	return q, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func listParam(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func overviewPart(o session.Overview, kind string) (interface{}, error) {
	switch kind {
	case "hosts":
		return o.Hosts, nil
	case "tags":
		return o.Tags, nil
	case "timeline":
		return o.Buckets, nil
	case "summary":
		return o.Summary, nil
	case "clients":
		return o.Clients, nil
	case "frequency":
		return o.HostFrequency, nil
	default:
		return nil, fmt.Errorf("unknown aggregate %q", kind)
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrUnknownEvent) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonBytes)
}
