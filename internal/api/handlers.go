package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"paperfolio/internal/auth"
	"paperfolio/internal/models"
	"paperfolio/internal/portfolio"
	"paperfolio/internal/quote"
	"paperfolio/internal/trading"

	"github.com/sirupsen/logrus"
)

// sessionCookie carries the signed session token between requests.
const sessionCookie = "session"

type ctxKey int

const userIDKey ctxKey = iota

// Store is the slice of the database the handlers read directly.
type Store interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetHoldings(ctx context.Context, userID int) ([]models.Holding, error)
	GetUserTransactions(ctx context.Context, userID int) ([]models.Transaction, error)
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Store     Store
	Auth      *auth.Service
	Portfolio *portfolio.Calculator
	Trading   *trading.Executor
	Quotes    quote.Provider
	Log       *logrus.Logger
}

// NewHandler creates a new handler
func NewHandler(store Store, authService *auth.Service, calc *portfolio.Calculator, exec *trading.Executor, quotes quote.Provider, log *logrus.Logger) *Handler {
	return &Handler{
		Store:     store,
		Auth:      authService,
		Portfolio: calc,
		Trading:   exec,
		Quotes:    quotes,
		Log:       log,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Register handles account creation
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username     string `json:"username"`
		Password     string `json:"password"`
		Confirmation string `json:"confirmation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Username) == "" {
		jsonError(w, http.StatusBadRequest, "username is required")
		return
	}
	if req.Password == "" {
		jsonError(w, http.StatusBadRequest, "password is required")
		return
	}
	if req.Confirmation == "" {
		jsonError(w, http.StatusBadRequest, "password confirmation is required")
		return
	}
	if req.Password != req.Confirmation {
		jsonError(w, http.StatusBadRequest, "passwords do not match")
		return
	}

	user, err := h.Auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrWeakPassword):
			jsonError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, models.ErrUsernameTaken):
			jsonError(w, http.StatusConflict, err.Error())
		default:
			h.Log.WithError(err).Error("register failed")
			jsonError(w, http.StatusInternalServerError, "failed to register user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"redirect": "/login",
	})
}

// Login verifies credentials and establishes the session cookie
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Username) == "" {
		jsonError(w, http.StatusBadRequest, "username is required")
		return
	}
	if req.Password == "" {
		jsonError(w, http.StatusBadRequest, "password is required")
		return
	}

	token, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			jsonError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.Log.WithError(err).Error("login failed")
		jsonError(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"redirect": "/",
	})
}

// EmptyForm backs the GET form routes that carry no data in the JSON
// boundary.
func (h *Handler) EmptyForm(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Logout clears the session cookie
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"redirect": "/login"})
}

// AuthMiddleware resolves the current user from the session cookie or a
// Bearer token and puts the user id on the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(sessionCookie); err == nil {
			token = c.Value
		}
		if token == "" {
			header := r.Header.Get("Authorization")
			token = strings.TrimPrefix(header, "Bearer ")
		}
		if token == "" {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		userID, err := h.Auth.UserFromToken(token)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, ok := r.Context().Value(userIDKey).(int)
	if !ok {
		jsonError(w, http.StatusUnauthorized, "authentication required")
		return 0, false
	}
	return userID, true
}

// Index shows the portfolio: positions valued at live prices, cash and
// totals.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	summary, err := h.Portfolio.Summary(r.Context(), userID)
	if err != nil {
		h.Log.WithError(err).Error("portfolio summary failed")
		jsonError(w, http.StatusInternalServerError, "failed to load portfolio")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// BuyForm returns the data the buy form needs: the current cash balance.
func (h *Handler) BuyForm(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.Store.GetUserByID(r.Context(), userID)
	if err != nil {
		h.Log.WithError(err).Error("load user failed")
		jsonError(w, http.StatusInternalServerError, "failed to load account")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cash": user.Cash})
}

// Buy executes a purchase
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Symbol string `json:"symbol"`
		Shares int64  `json:"shares"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txn, err := h.Trading.Buy(r.Context(), userID, req.Symbol, req.Shares)
	if err != nil {
		h.tradeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Bought!",
		"redirect":    "/",
		"transaction": txn,
	})
}

// SellForm returns the data the sell form needs: the symbols the user
// currently holds.
func (h *Handler) SellForm(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	holdings, err := h.Store.GetHoldings(r.Context(), userID)
	if err != nil {
		h.Log.WithError(err).Error("load holdings failed")
		jsonError(w, http.StatusInternalServerError, "failed to load holdings")
		return
	}

	symbols := []string{}
	for _, holding := range holdings {
		symbols = append(symbols, holding.Symbol)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": symbols})
}

// Sell executes a disposal
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Symbol string `json:"symbol"`
		Shares int64  `json:"shares"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txn, err := h.Trading.Sell(r.Context(), userID, req.Symbol, req.Shares)
	if err != nil {
		h.tradeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Sold!",
		"redirect":    "/",
		"transaction": txn,
	})
}

// Quote looks up a single symbol. GET takes ?symbol=, POST a JSON body.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if r.Method == http.MethodPost {
		var req struct {
			Symbol string `json:"symbol"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		symbol = req.Symbol
	}

	if quote.Normalize(symbol) == "" {
		jsonError(w, http.StatusBadRequest, models.ErrMissingSymbol.Error())
		return
	}

	q, err := h.Quotes.Lookup(r.Context(), symbol)
	if err != nil {
		// Lookup failures are deliberately not distinguished from
		// unknown symbols.
		jsonError(w, http.StatusNotFound, models.ErrUnknownSymbol.Error())
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// History lists all of the user's transactions, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	txns, err := h.Store.GetUserTransactions(r.Context(), userID)
	if err != nil {
		h.Log.WithError(err).Error("load history failed")
		jsonError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

// tradeError maps trade failures onto user-facing responses.
func (h *Handler) tradeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrMissingSymbol), errors.Is(err, models.ErrInvalidShares):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrUnknownSymbol):
		jsonError(w, http.StatusNotFound, models.ErrUnknownSymbol.Error())
	case errors.Is(err, models.ErrInsufficientFunds), errors.Is(err, models.ErrInsufficientHoldings):
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.Log.WithError(err).Error("trade failed")
		jsonError(w, http.StatusInternalServerError, "trade failed")
	}
}
