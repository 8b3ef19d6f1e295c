// Package httpapi is the thin HTTP binding layer over internal/xmlenc:
// POST /v1/encrypt and POST /v1/decrypt accept and return JSON envelopes
// carrying base64 payloads and an XML template/document, plus the usual
// health/readiness/liveness/metrics endpoints. It is the "surrounding
// service" the core engine itself stays agnostic of.
package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/beevik/etree"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/kenneth/xmlenc-gateway/internal/audit"
	"github.com/kenneth/xmlenc-gateway/internal/keymanager"
	"github.com/kenneth/xmlenc-gateway/internal/metrics"
	"github.com/kenneth/xmlenc-gateway/internal/resolver"
	"github.com/kenneth/xmlenc-gateway/internal/xmlenc"
)

// Handler wires the xmlenc engine to HTTP.
type Handler struct {
	keyManager keymanager.Resolver
	resolver   *resolver.Resolver
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	audit      audit.Logger
}

// NewHandler creates a new HTTP binding for the xmlenc engine. keyManager
// and resv may be nil when callers always supply keys/CipherValue inline.
func NewHandler(keyManager keymanager.Resolver, resv *resolver.Resolver, logger *logrus.Logger, m *metrics.Metrics, auditLogger audit.Logger) *Handler {
	return &Handler{
		keyManager: keyManager,
		resolver:   resv,
		logger:     logger,
		metrics:    m,
		audit:      auditLogger,
	}
}

// RegisterRoutes registers all HTTP routes on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) { metrics.HealthHandler()(w, req) }).Methods("GET")
	r.HandleFunc("/live", func(w http.ResponseWriter, req *http.Request) { metrics.LivenessHandler()(w, req) }).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, req *http.Request) { metrics.ReadinessHandler(nil)(w, req) }).Methods("GET")
	r.Handle("/metrics", h.metrics.Handler()).Methods("GET")

	r.HandleFunc("/v1/encrypt", h.handleEncrypt).Methods("POST")
	r.HandleFunc("/v1/decrypt", h.handleDecrypt).Methods("POST")
}

// encryptRequest is the POST /v1/encrypt body. Template is a serialized
// EncryptedData element (built via internal/template), Plaintext is the
// base64-encoded payload, Key is an optional caller-supplied base64 key
// that, when absent, falls through to the Handler's KeyManager.
type encryptRequest struct {
	Template  string `json:"template"`
	Plaintext string `json:"plaintext"`
	Key       string `json:"key,omitempty"`
}

type encryptResponse struct {
	Document         string `json:"document"`
	ID               string `json:"id,omitempty"`
	Type             string `json:"type,omitempty"`
	EncryptionMethod string `json:"encryption_method,omitempty"`
}

type decryptRequest struct {
	Document string `json:"document"`
	Key      string `json:"key,omitempty"`
}

type decryptResponse struct {
	Plaintext string `json:"plaintext"`
	Document  string `json:"document,omitempty"`
	Replaced  bool   `json:"replaced"`
	ID        string `json:"id,omitempty"`
}

func (h *Handler) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req encryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	encNode, err := parseEncryptedData(req.Template)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid template", err)
		return
	}

	plaintext, err := base64.StdEncoding.DecodeString(req.Plaintext)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid base64 plaintext", err)
		return
	}

	var key []byte
	if req.Key != "" {
		key, err = base64.StdEncoding.DecodeString(req.Key)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid base64 key", err)
			return
		}
	}

	ctx := &xmlenc.Ctx{KeyManager: h.keyManager, Logger: h.logger}

	res, err := xmlenc.EncryptMemory(r.Context(), ctx, key, encNode, plaintext)
	duration := time.Since(start)
	if err != nil {
		h.recordEncrypt(duration, 0, false, err)
		h.writeError(w, http.StatusUnprocessableEntity, "encryption failed", err)
		return
	}
	h.recordEncrypt(duration, int64(len(plaintext)), true, nil)

	doc := etree.NewDocument()
	doc.SetRoot(encNode)
	docStr, err := doc.WriteToString()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "serializing result", err)
		return
	}

	h.writeJSON(w, http.StatusOK, encryptResponse{
		Document:         docStr,
		ID:               res.ID,
		Type:             res.Type,
		EncryptionMethod: res.EncryptionMethod,
	})
}

func (h *Handler) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req decryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	encNode, err := parseEncryptedData(req.Document)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid document", err)
		return
	}

	var key []byte
	if req.Key != "" {
		key, err = base64.StdEncoding.DecodeString(req.Key)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid base64 key", err)
			return
		}
	}

	ctx := &xmlenc.Ctx{KeyManager: h.keyManager, Logger: h.logger}
	res, err := xmlenc.Decrypt(r.Context(), ctx, key, encNode, h.resolver)
	duration := time.Since(start)
	if err != nil {
		h.recordDecrypt(duration, 0, false, err)
		h.writeError(w, http.StatusUnprocessableEntity, "decryption failed", err)
		return
	}
	h.recordDecrypt(duration, int64(len(res.Buffer)), true, nil)

	resp := decryptResponse{
		Plaintext: base64.StdEncoding.EncodeToString(res.Buffer),
		Replaced:  res.Replaced,
		ID:        res.ID,
	}
	if res.Replaced {
		doc := etree.NewDocument()
		doc.SetRoot(encNode)
		if docStr, err := doc.WriteToString(); err == nil {
			resp.Document = docStr
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) recordEncrypt(d time.Duration, bytes int64, success bool, err error) {
	if h.metrics != nil {
		h.metrics.RecordEncryptionOperation(nil, "encrypt", d, bytes)
		if !success {
			h.metrics.RecordEncryptionError(nil, "encrypt", "encryption_failed")
		}
	}
	if h.audit != nil {
		h.audit.LogEncrypt("memory", "", "", 0, success, err, d, nil)
	}
}

func (h *Handler) recordDecrypt(d time.Duration, bytes int64, success bool, err error) {
	if h.metrics != nil {
		h.metrics.RecordEncryptionOperation(nil, "decrypt", d, bytes)
		if !success {
			h.metrics.RecordEncryptionError(nil, "decrypt", "decryption_failed")
		}
	}
	if h.audit != nil {
		h.audit.LogDecrypt("memory", "", "", 0, success, err, d, nil)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if h.logger != nil {
		h.logger.WithError(err).WithField("status", status).Error(msg)
	}
	h.writeJSON(w, status, map[string]string{"error": msg, "detail": errString(err)})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func parseEncryptedData(xml string) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, etree.ErrXML
	}
	return doc.Root(), nil
}
