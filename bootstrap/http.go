// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package bootstrap

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/luxfi/log"

	"github.com/holochain/dht-core/codec"
	"github.com/holochain/dht-core/hash"
)

// sizeLimit bounds a request body, mirroring put.rs's
// body::content_length_limit guard against an oversized payload.
const sizeLimit = 1 << 16

// RandomRequest is the body of an X-Op: random request.
type RandomRequest struct {
	Space hash.Hash
	Limit int
}

// RandomResponse is the body of an X-Op: random response.
type RandomResponse struct {
	Agents []AgentInfo
}

// Service is the bootstrap HTTP handler: a single POST / endpoint
// dispatching on the X-Op header, exactly as put.rs's warp filter
// does, expressed over gorilla/mux instead of warp.
type Service struct {
	Store *Store
	Log   log.Logger
}

// NewService returns a Service backed by store.
func NewService(store *Store, logger log.Logger) *Service {
	return &Service{Store: store, Log: logger}
}

// Router returns the mux.Router serving this Service.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handle).Methods(http.MethodPost)
	return r
}

func (s *Service) handle(w http.ResponseWriter, r *http.Request) {
	switch r.Header.Get("X-Op") {
	case "put":
		s.handlePut(w, r)
	case "random":
		s.handleRandom(w, r)
	default:
		http.Error(w, "bootstrap: unknown X-Op", http.StatusBadRequest)
	}
}

func (s *Service) handlePut(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, sizeLimit))
	if err != nil {
		http.Error(w, "bootstrap: reading body", http.StatusBadRequest)
		return
	}
	var info AgentInfo
	if _, err := codec.Codec.Unmarshal(body, &info); err != nil {
		http.Error(w, "bootstrap: decoding agent info", http.StatusBadRequest)
		return
	}
	if err := s.Store.Put(info); err != nil {
		s.Log.Warn("bootstrap: rejected put", "agent", info.Agent, "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := codec.Codec.Marshal(codec.CurrentVersion, struct{}{})
	if err != nil {
		http.Error(w, "bootstrap: encoding response", http.StatusInternalServerError)
		return
	}
	w.Write(resp)
}

func (s *Service) handleRandom(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, sizeLimit))
	if err != nil {
		http.Error(w, "bootstrap: reading body", http.StatusBadRequest)
		return
	}
	var req RandomRequest
	if _, err := codec.Codec.Unmarshal(body, &req); err != nil {
		http.Error(w, "bootstrap: decoding random request", http.StatusBadRequest)
		return
	}
	agents := s.Store.Random(req.Space, req.Limit)
	resp, err := codec.Codec.Marshal(codec.CurrentVersion, RandomResponse{Agents: agents})
	if err != nil {
		http.Error(w, "bootstrap: encoding response", http.StatusInternalServerError)
		return
	}
	w.Write(resp)
}
