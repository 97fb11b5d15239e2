package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// handleBalanceStream replays the balance journal and then follows it.
// ?account= narrows the stream; Last-Event-ID resumes after a journal index.
func (s *Server) handleBalanceStream(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		writeError(w, http.StatusServiceUnavailable, "balance journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	account := r.URL.Query().Get("account")
	lastIndex, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	setStreamHeaders(w)

	// send a comment heartbeat every 30s so proxies keep connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(snapshotPollInterval)
	defer pollTicker.Stop()

	sendSnapshots := func() error {
		records, err := s.Journal.After(lastIndex, account)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Snapshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\nevent: balance\ndata: %s\n\n", record.Index, payload)
			lastIndex = record.Index
		}
		if len(records) > 0 {
			flusher.Flush()
		}
		return nil
	}

	if err := sendSnapshots(); err != nil {
		s.Logger.Error("balance stream initial load", zap.Error(err))
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendSnapshots(); err != nil {
				s.Logger.Warn("balance stream poll", zap.Error(err))
			}
		}
	}
}

// handleEventStream forwards live ledger events. Nothing is replayed.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	account := r.URL.Query().Get("account")
	sub := s.Events.Subscribe()
	defer s.Events.Unsubscribe(sub)

	setStreamHeaders(w)
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e, ok := <-sub:
			if !ok {
				return
			}
			if account != "" && e.Account != account {
				continue
			}
			payload, err := json.Marshal(e)
			if err != nil {
				s.Logger.Warn("encode ledger event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, payload)
			flusher.Flush()
		}
	}
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}
