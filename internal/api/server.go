package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/you/swap-engine/internal/clmath"
	"github.com/you/swap-engine/internal/engine"
	"github.com/you/swap-engine/internal/metrics"
	"github.com/you/swap-engine/internal/types"
)

// Service is the quoting surface the API serves.
type Service interface {
	QuoteSwap(ctx context.Context, req types.SwapRequest) (*engine.SwapQuote, error)
	QuoteLiquidityAdd(ctx context.Context, req engine.LiquidityRequest) (*engine.LiquidityQuote, error)
	QuoteUnclaimedFees(ctx context.Context, pool common.Address, tokenID *big.Int) (*engine.FeesQuote, error)
}

type Server struct {
	svc      Service
	log      *zap.Logger
	upgrader websocket.Upgrader
	// upper bound for one request, websocket messages included
	timeout time.Duration
}

func NewServer(svc Service, log *zap.Logger) *Server {
	return &Server{
		svc:     svc,
		log:     log,
		timeout: 15 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/quote/swap", s.instrument("quote_swap", s.handleSwap))
	mux.HandleFunc("/api/quote/liquidity", s.instrument("quote_liquidity", s.handleLiquidity))
	mux.HandleFunc("/api/fees", s.instrument("fees", s.handleFees))
	mux.HandleFunc("/api/fee-tiers", s.instrument("fee_tiers", s.handleFeeTiers))
	mux.HandleFunc("/ws/quote", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return withCORS(mux)
}

// StartHTTP serves until ctx is done.
func StartHTTP(ctx context.Context, s *Server, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 3 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("api listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r)
		metrics.APIRequests.WithLabelValues(name, strconv.Itoa(sw.code)).Inc()
	}
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorDTO{Error: "POST only", Kind: engine.KindMalformed.String()})
		return
	}
	var dto SwapRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		s.writeError(w, errors.Join(types.ErrInvalidRequest, err))
		return
	}
	req, err := dto.ToRequest()
	if err != nil {
		s.writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	sq, err := s.svc.QuoteSwap(ctx, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSwapQuoteDTO(sq))
}

func (s *Server) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorDTO{Error: "POST only", Kind: engine.KindMalformed.String()})
		return
	}
	var dto LiquidityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		s.writeError(w, errors.Join(types.ErrInvalidRequest, err))
		return
	}
	req, err := dto.ToRequest()
	if err != nil {
		s.writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	lq, err := s.svc.QuoteLiquidityAdd(ctx, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, liquidityQuoteDTO(lq))
}

func (s *Server) handleFees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokenID, err := parseAmount("tokenId", q.Get("tokenId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var pool common.Address
	if p := q.Get("pool"); p != "" {
		if pool, err = parseAddress("pool", p); err != nil {
			s.writeError(w, err)
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	fq, err := s.svc.QuoteUnclaimedFees(ctx, pool, tokenID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FeesQuoteDTO{
		TokenID:   fq.TokenID.String(),
		Pool:      fq.Pool.Hex(),
		Token0:    fq.Token0.Hex(),
		Token1:    fq.Token1.Hex(),
		Unclaimed: feesDTO(fq.Unclaimed),
		Total:     feesDTO(fq.Total),
	})
}

func (s *Server) handleFeeTiers(w http.ResponseWriter, _ *http.Request) {
	tiers := clmath.FeeTiers()
	out := make([]FeeTierDTO, 0, len(tiers))
	for _, fee := range tiers {
		spacing, err := clmath.TickSpacing(fee)
		if err != nil {
			continue
		}
		out = append(out, FeeTierDTO{Fee: fee, TickSpacing: spacing})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := engine.Classify(err)
	if kind == engine.KindInternal {
		s.log.Error("request failed", zap.Error(err))
	} else {
		s.log.Debug("request rejected", zap.String("kind", kind.String()), zap.Error(err))
	}
	writeJSON(w, kind.HTTPStatus(), ErrorDTO{Error: err.Error(), Kind: kind.String()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
