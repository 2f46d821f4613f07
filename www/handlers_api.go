package www

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/poller"
)

func (h *Handlers) apiLatest(w http.ResponseWriter, r *http.Request) {
	equipment := r.URL.Query().Get("equipment")
	if equipment == "" {
		h.jsonError(w, "equipment is required", http.StatusBadRequest)
		return
	}
	rows, err := h.engine.DB().LatestForEquipment(equipment)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, rows)
}

func (h *Handlers) apiHistory(w http.ResponseWriter, r *http.Request) {
	equipment := r.URL.Query().Get("equipment")
	key := r.URL.Query().Get("key")
	if equipment == "" || key == "" {
		h.jsonError(w, "equipment and key are required", http.StatusBadRequest)
		return
	}
	start, end, err := timeRange(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	def, ok := h.engine.Catalog().Snapshot().Definition(equipment, key)
	if !ok {
		h.jsonError(w, "unknown metric", http.StatusNotFound)
		return
	}
	rows, err := h.engine.DB().History(def.ID, start, end)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, rows)
}

func (h *Handlers) apiActiveFaults(w http.ResponseWriter, r *http.Request) {
	equipment := r.URL.Query().Get("equipment")
	if equipment == "" {
		h.jsonError(w, "equipment is required", http.StatusBadRequest)
		return
	}
	rows, err := h.engine.DB().ActiveFaults(equipment)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, rows)
}

func (h *Handlers) apiFaultEvents(w http.ResponseWriter, r *http.Request) {
	equipment := r.URL.Query().Get("equipment")
	if equipment == "" {
		h.jsonError(w, "equipment is required", http.StatusBadRequest)
		return
	}
	start, end, err := timeRange(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	marker := r.URL.Query().Get("marker")
	rows, err := h.engine.DB().FaultEvents(equipment, start, end, marker)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, rows)
}

func (h *Handlers) apiFaultDowntime(w http.ResponseWriter, r *http.Request) {
	equipment := r.URL.Query().Get("equipment")
	if equipment == "" {
		h.jsonError(w, "equipment is required", http.StatusBadRequest)
		return
	}
	start, end, err := timeRange(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	marker := r.URL.Query().Get("marker")
	downtime, err := h.engine.DB().FaultDowntime(equipment, start, end, marker)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{
		"equipment":  equipment,
		"start":      start,
		"end":        end,
		"downtime_s": downtime.Seconds(),
	})
}

func (h *Handlers) apiOEE(w http.ResponseWriter, r *http.Request) {
	line := r.URL.Query().Get("line")
	equipment := r.URL.Query().Get("equipment")
	if line == "" && equipment == "" {
		h.jsonError(w, "line or equipment is required", http.StatusBadRequest)
		return
	}
	start, end, err := timeRange(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if equipment != "" {
		rows, err := h.engine.DB().OEEForEquipment(equipment, start, end)
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.jsonOK(w, rows)
		return
	}
	rows, err := h.engine.DB().OEEForLine(line, start, end)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, rows)
}

func (h *Handlers) apiSources(w http.ResponseWriter, r *http.Request) {
	health := h.engine.SourceHealth()
	if health == nil {
		health = []poller.Health{}
	}
	h.jsonOK(w, health)
}

func (h *Handlers) apiEquipment(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Catalog().Snapshot().Equipment())
}

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Catalog().Snapshot()
	quarantined := h.engine.QuarantinedFaultKeys()
	status := "ok"
	if len(quarantined) > 0 {
		status = "degraded"
	}
	h.jsonOK(w, map[string]any{
		"status":           status,
		"definitions":      snap.DefinitionCount(),
		"catalog_age":      time.Since(snap.LoadedAt()).Seconds(),
		"live_conns":       h.eventHub.ConnCount(),
		"quarantined_keys": quarantined,
	})
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
