package jsonrpc

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strconv"
	"strings"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"adn/errors"
	"adn/types"
)

// --- Error type used by handlers ---

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func toJRPC2Error(e *rpcError) error {
	if e == nil {
		return nil
	}
	if e.Data != nil {
		return jrpc2.Errorf(jrpc2.Code(e.Code), "%s", e.Message).WithData(e.Data)
	}
	return jrpc2.Errorf(jrpc2.Code(e.Code), "%s", e.Message)
}

// errToRPC converts a SyncError into the wire error, keeping the string code
// visible to clients in the data field.
func errToRPC(err error) *rpcError {
	if err == nil {
		return nil
	}
	code := errors.CodeOf(err)
	rpcCode := -32000
	switch code {
	case errors.ErrCodeNotFound:
		rpcCode = -32004
	case errors.ErrCodeInvalidRequest, errors.ErrCodeInvalidOperation:
		rpcCode = -32602
	}
	return &rpcError{Code: rpcCode, Message: err.Error(), Data: map[string]string{"code": string(code)}}
}

// --- Params/Results ---

type getStateRequest struct {
	AdID string `json:"ad_id"`
}

type getStateResponse struct {
	AdID              string      `json:"ad_id"`
	Kind              string      `json:"kind"`
	State             types.Value `json:"state"`
	UpdateNum         uint64      `json:"update_num"`
	LastProcessedSlot uint64      `json:"last_processed_slot"`
}

type getHistoryRequest struct {
	AdID  string `json:"ad_id"`
	First uint64 `json:"first"`
	Last  uint64 `json:"last"`
}

type updateInfo struct {
	Num           uint64      `json:"num"`
	State         types.Value `json:"state"`
	Slot          uint64      `json:"slot"`
	VersionedHash string      `json:"versioned_hash"`
}

type getHistoryResponse struct {
	AdID    string       `json:"ad_id"`
	Updates []updateInfo `json:"updates"`
}

type submitRequest struct {
	AdID string          `json:"ad_id"`
	Op   types.Operation `json:"op"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

type getStatusRequest struct {
	RequestID string `json:"request_id"`
}

type getStatusResponse struct {
	RequestID string `json:"request_id"`
	AdID      string `json:"ad_id"`
	Status    string `json:"status"`
	Result    string `json:"result,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// --- Services the server fronts ---

type AdService interface {
	GetAd(id types.AdID) (*types.Ad, error)
	GetHistory(id types.AdID, first, last uint64) ([]*types.AdUpdate, error)
}

type RequestService interface {
	Submit(adID types.AdID, op types.Operation) (*types.Request, error)
	GetRequest(id string) (*types.Request, error)
}

type Server struct {
	addr       string
	adSvc      AdService
	reqSvc     RequestService
	corsConfig CORSConfig
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

func NewServer(addr string, adSvc AdService, reqSvc RequestService) *Server {
	return &Server{
		addr:   addr,
		adSvc:  adSvc,
		reqSvc: reqSvc,
		corsConfig: CORSConfig{
			AllowedOrigins: []string{},
			AllowedMethods: []string{},
			AllowedHeaders: []string{},
			MaxAge:         0,
		},
	}
}

func (s *Server) Start() {
	methods := s.buildMethodMap()
	jh := jhttp.NewBridge(methods, &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		jh.ServeHTTP(w, r)
	})

	http.Handle("/", h)
	go http.ListenAndServe(s.addr, nil)
}

// SetCORSConfig allows configuring CORS settings
func (s *Server) SetCORSConfig(config CORSConfig) {
	s.corsConfig = config
}

// Build jrpc2 method map
func (s *Server) buildMethodMap() handler.Map {
	return handler.Map{
		"ad.getstate": handler.New(func(ctx context.Context, p getStateRequest) (*getStateResponse, error) {
			res, err := s.rpcGetState(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		"ad.gethistory": handler.New(func(ctx context.Context, p getHistoryRequest) (*getHistoryResponse, error) {
			res, err := s.rpcGetHistory(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		"request.submit": handler.New(func(ctx context.Context, p submitRequest) (*submitResponse, error) {
			res, err := s.rpcSubmit(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		"request.getstatus": handler.New(func(ctx context.Context, p getStatusRequest) (*getStatusResponse, error) {
			res, err := s.rpcGetStatus(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
	}
}

func (s *Server) rpcGetState(p getStateRequest) (*getStateResponse, *rpcError) {
	id, err := types.ParseAdID(p.AdID)
	if err != nil {
		return nil, errToRPC(errors.New(errors.ErrCodeInvalidRequest, "%v", err))
	}
	ad, err := s.adSvc.GetAd(id)
	if err != nil {
		return nil, errToRPC(err)
	}
	return &getStateResponse{
		AdID:              ad.ID.Hex(),
		Kind:              ad.Kind.String(),
		State:             ad.CurrentState,
		UpdateNum:         ad.UpdateNum,
		LastProcessedSlot: ad.LastProcessedSlot,
	}, nil
}

func (s *Server) rpcGetHistory(p getHistoryRequest) (*getHistoryResponse, *rpcError) {
	id, err := types.ParseAdID(p.AdID)
	if err != nil {
		return nil, errToRPC(errors.New(errors.ErrCodeInvalidRequest, "%v", err))
	}
	updates, err := s.adSvc.GetHistory(id, p.First, p.Last)
	if err != nil {
		return nil, errToRPC(err)
	}
	infos := make([]updateInfo, 0, len(updates))
	for _, u := range updates {
		infos = append(infos, updateInfo{
			Num:           u.Num,
			State:         u.State,
			Slot:          u.Slot,
			VersionedHash: fmt.Sprintf("%x", u.VersionedHash),
		})
	}
	return &getHistoryResponse{AdID: id.Hex(), Updates: infos}, nil
}

func (s *Server) rpcSubmit(p submitRequest) (*submitResponse, *rpcError) {
	id, err := types.ParseAdID(p.AdID)
	if err != nil {
		return nil, errToRPC(errors.New(errors.ErrCodeInvalidRequest, "%v", err))
	}
	req, err := s.reqSvc.Submit(id, p.Op)
	if err != nil {
		return nil, errToRPC(err)
	}
	return &submitResponse{RequestID: req.ID, Status: string(req.Status)}, nil
}

func (s *Server) rpcGetStatus(p getStatusRequest) (*getStatusResponse, *rpcError) {
	req, err := s.reqSvc.GetRequest(p.RequestID)
	if err != nil {
		return nil, errToRPC(err)
	}
	return &getStatusResponse{
		RequestID: req.ID,
		AdID:      req.ADID.Hex(),
		Status:    string(req.Status),
		Result:    req.Result,
		Reason:    req.Reason,
	}, nil
}

// --- Helpers ---

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsConfig.AllowedOrigins) > 0 {
		if s.corsConfig.AllowedOrigins[0] == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.corsConfig.AllowedOrigins {
				if origin == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
	}

	if len(s.corsConfig.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(s.corsConfig.AllowedMethods, ", "))
	}

	if len(s.corsConfig.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(s.corsConfig.AllowedHeaders, ", "))
	}

	if s.corsConfig.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", s.corsConfig.MaxAge))
	}
}

// --- Env helpers ---

// CORSFromEnv reads environment variables and constructs a CORSConfig.
// Returns (cfg, true) if any CORS-related env var is set; otherwise (zero, false).
//
// Env vars:
// - CORS_ALLOWED_ORIGINS: comma-separated list
// - CORS_ALLOWED_METHODS: comma-separated list
// - CORS_ALLOWED_HEADERS: comma-separated list
// - CORS_MAX_AGE: integer seconds
func CORSFromEnv() (CORSConfig, bool) {
	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	methods := os.Getenv("CORS_ALLOWED_METHODS")
	headers := os.Getenv("CORS_ALLOWED_HEADERS")
	maxAgeStr := os.Getenv("CORS_MAX_AGE")

	var maxAge int
	if maxAgeStr != "" {
		if v, err := strconv.Atoi(maxAgeStr); err == nil {
			maxAge = v
		}
	}

	var allowedOrigins, allowedMethods, allowedHeaders []string
	if origins != "" {
		allowedOrigins = splitAndTrim(origins)
	}
	if methods != "" {
		allowedMethods = splitAndTrim(methods)
	}
	if headers != "" {
		allowedHeaders = splitAndTrim(headers)
	}

	provided := len(allowedOrigins) > 0 || len(allowedMethods) > 0 || len(allowedHeaders) > 0 || maxAge > 0
	if !provided {
		return CORSConfig{}, false
	}

	return CORSConfig{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: allowedMethods,
		AllowedHeaders: allowedHeaders,
		MaxAge:         maxAge,
	}, true
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
