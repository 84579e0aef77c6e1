/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/kentakayama/suit-orchestrator/internal/ipuc"
	"github.com/kentakayama/suit-orchestrator/internal/plat"
	"github.com/veraison/go-cose"
)

const (
	maxRequestBodyBytes = 1 << 20 // 1 MiB covers the largest write chunk.

	contentTypeCBOR = "application/cbor"
	clientIDHeader  = "X-IPC-Client-ID"
)

var errMissingClientID = errors.New("missing or malformed " + clientIDHeader)

// IPUC is the part of the IPUC registry exposed to other cores.
type IPUC interface {
	WriteSetup(clientID int, componentID, encryptionInfo, compressionInfo []byte) error
	Write(clientID int, componentID []byte, offset uint64, buf []byte, lastChunk bool) error
	DigestCompare(componentID []byte, alg cose.Algorithm, digest []byte) error
	MirrorAddr(requiredSize uint64) uint64
	Count() int
	Info(idx int) (ipuc.EntryInfo, error)
}

// ModeReader reads the persisted execution mode.
type ModeReader interface {
	ExecutionMode(ctx context.Context) (int, bool, error)
}

type handler struct {
	ipuc   IPUC
	modes  ModeReader
	logger *log.Logger
}

type responseSpec struct {
	status      int
	body        []byte
	contentType string
}

type writeSetupRequest struct {
	ComponentID     []byte `cbor:"1,keyasint"`
	EncryptionInfo  []byte `cbor:"2,keyasint,omitempty"`
	CompressionInfo []byte `cbor:"3,keyasint,omitempty"`
}

type writeRequest struct {
	ComponentID []byte `cbor:"1,keyasint"`
	Offset      uint64 `cbor:"2,keyasint"`
	Chunk       []byte `cbor:"3,keyasint"`
	LastChunk   bool   `cbor:"4,keyasint"`
}

type digestCompareRequest struct {
	ComponentID []byte         `cbor:"1,keyasint"`
	Alg         cose.Algorithm `cbor:"2,keyasint"`
	Digest      []byte         `cbor:"3,keyasint"`
}

type mirrorAddrRequest struct {
	RequiredSize uint64 `cbor:"1,keyasint"`
}

type mirrorAddrResponse struct {
	Address uint64 `cbor:"1,keyasint"`
}

type componentInfo struct {
	ComponentID     []byte `cbor:"1,keyasint"`
	Role            int    `cbor:"2,keyasint"`
	Usage           int    `cbor:"3,keyasint"`
	WritePeekOffset uint64 `cbor:"4,keyasint"`
	LastChunkStored bool   `cbor:"5,keyasint"`
}

// errorResponse carries the platform error kind of a failed call.
type errorResponse struct {
	Kind int `cbor:"1,keyasint"`
}

func newHandler(registry IPUC, modes ModeReader, logger *log.Logger) *handler {
	return &handler{
		ipuc:   registry,
		modes:  modes,
		logger: logger,
	}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var (
		method string
		serve  func(http.ResponseWriter, *http.Request)
	)
	switch r.URL.Path {
	case "/ipuc/write-setup":
		method, serve = http.MethodPost, h.writeSetup
	case "/ipuc/write":
		method, serve = http.MethodPost, h.write
	case "/ipuc/digest-compare":
		method, serve = http.MethodPost, h.digestCompare
	case "/ipuc/mirror-addr":
		method, serve = http.MethodPost, h.mirrorAddr
	case "/ipuc/components":
		method, serve = http.MethodGet, h.components
	case "/execution-mode":
		method, serve = http.MethodGet, h.executionMode
	default:
		http.NotFound(w, r)
		return
	}
	if r.Method != method {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	serve(w, r)
}

func clientID(r *http.Request) (int, error) {
	v := r.Header.Get(clientIDHeader)
	if v == "" {
		return 0, errMissingClientID
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return 0, errMissingClientID
	}
	return id, nil
}

// decodeBody reads a CBOR request body into v and reports failures to
// the client itself.
func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Header.Get("Content-Type") != contentTypeCBOR {
		h.logger.Printf("content type mismatch: expected %s, actual %v", contentTypeCBOR, r.Header.Get("Content-Type"))
		http.Error(w, "This endpoint only accepts Content-Type: "+contentTypeCBOR, http.StatusUnsupportedMediaType)
		return false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		h.logger.Printf("failed reading request body: %v", err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return false
	}
	if err := r.Body.Close(); err != nil {
		h.logger.Printf("failed closing request body: %v", err)
		http.Error(w, "failed to close request body", http.StatusBadRequest)
		return false
	}
	if err := cbor.Unmarshal(body, v); err != nil {
		h.logger.Printf("failed to decode %s request: %v", r.URL.Path, err)
		h.writeError(w, plat.ErrCBORDecoding)
		return false
	}
	return true
}

func (h *handler) writeSetup(w http.ResponseWriter, r *http.Request) {
	client, err := clientID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req writeSetupRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.ipuc.WriteSetup(client, req.ComponentID, req.EncryptionInfo, req.CompressionInfo); err != nil {
		h.logger.Printf("write setup from client %d failed: %v", client, err)
		h.writeError(w, err)
		return
	}
	h.writeResponse(w, responseSpec{status: http.StatusNoContent})
}

func (h *handler) write(w http.ResponseWriter, r *http.Request) {
	client, err := clientID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req writeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.ipuc.Write(client, req.ComponentID, req.Offset, req.Chunk, req.LastChunk); err != nil {
		h.logger.Printf("write from client %d at offset %d failed: %v", client, req.Offset, err)
		h.writeError(w, err)
		return
	}
	h.writeResponse(w, responseSpec{status: http.StatusNoContent})
}

func (h *handler) digestCompare(w http.ResponseWriter, r *http.Request) {
	var req digestCompareRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.ipuc.DigestCompare(req.ComponentID, req.Alg, req.Digest); err != nil {
		h.logger.Printf("digest compare failed: %v", err)
		h.writeError(w, err)
		return
	}
	h.writeResponse(w, responseSpec{status: http.StatusNoContent})
}

func (h *handler) mirrorAddr(w http.ResponseWriter, r *http.Request) {
	var req mirrorAddrRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	address := h.ipuc.MirrorAddr(req.RequiredSize)
	if address == 0 {
		h.writeError(w, plat.ErrNotFound)
		return
	}
	h.writeCBOR(w, http.StatusOK, mirrorAddrResponse{Address: address})
}

func (h *handler) components(w http.ResponseWriter, r *http.Request) {
	n := h.ipuc.Count()
	out := make([]componentInfo, 0, n)
	for i := 0; i < n; i++ {
		info, err := h.ipuc.Info(i)
		if err != nil {
			// the registry changed under us
			break
		}
		out = append(out, componentInfo{
			ComponentID:     info.ComponentID,
			Role:            int(info.Role),
			Usage:           int(info.Usage),
			WritePeekOffset: info.WritePeekOffset,
			LastChunkStored: info.LastChunkStored,
		})
	}
	h.writeCBOR(w, http.StatusOK, out)
}

func (h *handler) executionMode(w http.ResponseWriter, r *http.Request) {
	mode, ok, err := h.modes.ExecutionMode(r.Context())
	if err != nil {
		h.logger.Printf("failed reading execution mode: %v", err)
		h.writeError(w, plat.ErrIO)
		return
	}
	if !ok {
		h.writeError(w, plat.ErrNotFound)
		return
	}
	h.writeCBOR(w, http.StatusOK, mode)
}

// statusFor converts a platform error kind into the HTTP status reported
// to the client.
func statusFor(kind plat.Error) int {
	switch kind {
	case plat.ErrNotFound:
		return http.StatusNotFound
	case plat.ErrIncorrectState, plat.ErrBusy:
		return http.StatusConflict
	case plat.ErrUnsupported:
		return http.StatusNotImplemented
	case plat.ErrInval, plat.ErrSize:
		return http.StatusUnprocessableEntity
	case plat.ErrCBORDecoding:
		return http.StatusBadRequest
	case plat.ErrNoMem, plat.ErrNoResources:
		return http.StatusInsufficientStorage
	case plat.ErrOutOfBounds:
		return http.StatusRequestedRangeNotSatisfiable
	case plat.ErrAccess, plat.ErrAuthentication:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	kind, _ := plat.Kind(err)
	body, merr := cbor.Marshal(errorResponse{Kind: int(kind)})
	if merr != nil {
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
		return
	}
	h.writeResponse(w, responseSpec{
		status:      statusFor(kind),
		body:        body,
		contentType: contentTypeCBOR,
	})
}

func (h *handler) writeCBOR(w http.ResponseWriter, status int, v any) {
	body, err := cbor.Marshal(v)
	if err != nil {
		h.logger.Printf("failed encoding response: %v", err)
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
		return
	}
	h.writeResponse(w, responseSpec{
		status:      status,
		body:        body,
		contentType: contentTypeCBOR,
	})
}

func (h *handler) writeResponse(w http.ResponseWriter, resp responseSpec) {
	w.Header().Set("Server", "suit-orchestrator")

	if len(resp.body) > 0 {
		for k, v := range defaultHeaders {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", resp.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(resp.body)))
		w.WriteHeader(resp.status)
		if _, err := w.Write(resp.body); err != nil {
			h.logger.Printf("failed writing response body: %v", err)
		}
		return
	}

	w.WriteHeader(resp.status)
}

var defaultHeaders = map[string]string{
	"Cache-Control":           "no-store",
	"X-Content-Type-Options":  "nosniff",
	"Content-Security-Policy": "default-src 'none'",
	"Referrer-Policy":         "no-referrer",
}
