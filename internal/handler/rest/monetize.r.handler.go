package hrest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"monetize-service/internal/domain"
	"monetize-service/internal/usecase"
	"monetize-service/pkg/response"
	xerrors "monetize-service/pkg/xerrors"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type MonetizeRestHandler struct {
	revenueUC  *usecase.RevenueUsecase
	walletUC   *usecase.WalletUsecase
	bonusUC    *usecase.BonusUsecase
	referralUC *usecase.ReferralUsecase
	streakUC   *usecase.StreakUsecase
}

func NewMonetizeRestHandler(
	revenueUC *usecase.RevenueUsecase,
	walletUC *usecase.WalletUsecase,
	bonusUC *usecase.BonusUsecase,
	referralUC *usecase.ReferralUsecase,
	streakUC *usecase.StreakUsecase,
) *MonetizeRestHandler {
	return &MonetizeRestHandler{
		revenueUC:  revenueUC,
		walletUC:   walletUC,
		bonusUC:    bonusUC,
		referralUC: referralUC,
		streakUC:   streakUC,
	}
}

// ===============================
// Revenue
// ===============================

type AdRevenueEventJSON struct {
	ReelID        string          `json:"reel_id"`
	ViewerID      string          `json:"viewer_id"`
	AdProvider    string          `json:"ad_provider"`
	AdType        string          `json:"ad_type"`
	Revenue       decimal.Decimal `json:"revenue"`
	CPM           decimal.Decimal `json:"cpm"`
	ViewDuration  float64         `json:"view_duration"`
	VideoDuration float64         `json:"video_duration"`
	ImpressionID  string          `json:"impression_id"`
}

type SubmitResultJSON struct {
	Accepted     bool                        `json:"accepted"`
	Distribution *domain.RevenueDistribution `json:"distribution,omitempty"`
	Reason       string                      `json:"reason,omitempty"`
}

func (h *MonetizeRestHandler) SubmitAdRevenueEvent(w http.ResponseWriter, r *http.Request) {
	var in AdRevenueEventJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dist, err := h.revenueUC.SubmitAdRevenueEvent(r.Context(), &domain.AdRevenueEvent{
		ReelID:        in.ReelID,
		ViewerID:      in.ViewerID,
		AdProvider:    in.AdProvider,
		AdType:        in.AdType,
		Revenue:       in.Revenue,
		CPM:           in.CPM,
		ViewDuration:  in.ViewDuration,
		VideoDuration: in.VideoDuration,
		ImpressionID:  in.ImpressionID,
	})
	if err != nil {
		status, body := submitOutcome(err)
		response.JSON(w, status, body)
		return
	}

	response.JSON(w, http.StatusOK, SubmitResultJSON{Accepted: true, Distribution: dist})
}

// submitOutcome maps a submission error to its HTTP response. A replayed
// impression is a retry-safe no-op: the money already moved, so the client
// gets 200 rather than an error it might keep retrying.
func submitOutcome(err error) (int, SubmitResultJSON) {
	if errors.Is(err, xerrors.ErrDuplicateEvent) {
		return http.StatusOK, SubmitResultJSON{Accepted: false, Reason: "Impression already settled"}
	}
	status, reason := rejectionFor(err)
	return status, SubmitResultJSON{Accepted: false, Reason: reason}
}

func (h *MonetizeRestHandler) GetDistribution(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	dist, err := h.revenueUC.GetDistribution(r.Context(), ref)
	if err != nil {
		status, reason := rejectionFor(err)
		response.Error(w, status, reason)
		return
	}
	response.JSON(w, http.StatusOK, dist)
}

// ===============================
// Wallet
// ===============================

func (h *MonetizeRestHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		response.Error(w, http.StatusBadRequest, "user id required")
		return
	}

	wallet, err := h.walletUC.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		status, reason := rejectionFor(err)
		response.Error(w, status, reason)
		return
	}
	response.JSON(w, http.StatusOK, wallet)
}

func (h *MonetizeRestHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		response.Error(w, http.StatusBadRequest, "user id required")
		return
	}

	filter := &domain.TransactionFilter{UserID: userID}
	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		t := domain.TransactionType(v)
		filter.Type = &t
	}
	if v := q.Get("sub_type"); v != "" {
		st := domain.TransactionSubType(v)
		filter.SubType = &st
	}
	if v := q.Get("status"); v != "" {
		s := domain.TransactionStatus(v)
		filter.Status = &s
	}

	txns, err := h.walletUC.GetTransactions(r.Context(), filter)
	if err != nil {
		status, reason := rejectionFor(err)
		response.Error(w, status, reason)
		return
	}
	response.JSON(w, http.StatusOK, txns)
}

func (h *MonetizeRestHandler) GetDailySummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	summary, err := h.walletUC.GetDailySummary(r.Context(), userID)
	if err != nil {
		status, reason := rejectionFor(err)
		response.Error(w, status, reason)
		return
	}
	response.JSON(w, http.StatusOK, summary)
}

type WithdrawJSON struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *MonetizeRestHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var in WithdrawJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.UserID == "" {
		response.Error(w, http.StatusBadRequest, "user id required")
		return
	}

	txn, err := h.walletUC.RequestWithdrawal(r.Context(), in.UserID, in.Amount)
	if err != nil {
		status, reason := rejectionFor(err)
		response.Error(w, status, reason)
		return
	}
	response.JSON(w, http.StatusOK, txn)
}

// ===============================
// Bonuses
// ===============================

type BonusJSON struct {
	UserID  string          `json:"user_id"`
	SubType string          `json:"sub_type"`
	Amount  decimal.Decimal `json:"amount"`
	ReelID  *string         `json:"reel_id,omitempty"`
}

func (h *MonetizeRestHandler) AwardBonus(w http.ResponseWriter, r *http.Request) {
	var in BonusJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.UserID == "" {
		response.Error(w, http.StatusBadRequest, "user id required")
		return
	}

	txn, err := h.bonusUC.AwardEngagementBonus(r.Context(), in.UserID, domain.TransactionSubType(in.SubType), in.Amount, in.ReelID)
	if err != nil {
		status, reason := rejectionFor(err)
		response.Error(w, status, reason)
		return
	}
	response.JSON(w, http.StatusOK, txn)
}

// ===============================
// Referrals
// ===============================

func (h *MonetizeRestHandler) GetReferralCode(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	code, err := h.referralUC.GetOrCreateCode(r.Context(), userID)
	if err != nil {
		status, reason := rejectionFor(err)
		response.Error(w, status, reason)
		return
	}
	response.JSON(w, http.StatusOK, code)
}

type CustomCodeJSON struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

func (h *MonetizeRestHandler) CreateCustomCode(w http.ResponseWriter, r *http.Request) {
	var in CustomCodeJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	code, err := h.referralUC.CreateCustomCode(r.Context(), in.UserID, in.Code)
	if err != nil {
		status, reason := rejectionFor(err)
		response.Error(w, status, reason)
		return
	}
	response.JSON(w, http.StatusCreated, code)
}

func (h *MonetizeRestHandler) GetShareLink(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	link, err := h.referralUC.ShareLink(r.Context(), userID)
	if err != nil {
		status, reason := rejectionFor(err)
		response.Error(w, status, reason)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"share_link": link})
}

type ApplyCodeJSON struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
	Email  string `json:"email,omitempty"`
}

func (h *MonetizeRestHandler) ApplyReferralCode(w http.ResponseWriter, r *http.Request) {
	var in ApplyCodeJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.UserID == "" {
		response.Error(w, http.StatusBadRequest, "user id required")
		return
	}

	rel, err := h.referralUC.ApplyReferralCode(r.Context(), in.UserID, in.Code, in.Email)
	if err != nil {
		status, reason := rejectionFor(err)
		response.Error(w, status, reason)
		return
	}
	response.JSON(w, http.StatusOK, rel)
}

// ===============================
// Streaks
// ===============================

type CheckInJSON struct {
	UserID string `json:"user_id"`
}

func (h *MonetizeRestHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var in CheckInJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.UserID == "" {
		response.Error(w, http.StatusBadRequest, "user id required")
		return
	}

	result, err := h.streakUC.CheckIn(r.Context(), in.UserID)
	if err != nil {
		status, reason := rejectionFor(err)
		response.Error(w, status, reason)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *MonetizeRestHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	streak, err := h.streakUC.GetStreak(r.Context(), userID)
	if err != nil {
		status, reason := rejectionFor(err)
		response.Error(w, status, reason)
		return
	}
	response.JSON(w, http.StatusOK, streak)
}

// ===============================
// Routing
// ===============================

func (h *MonetizeRestHandler) registerRoutes(r chi.Router) {
	r.Route("/monetize", func(r chi.Router) {
		r.Post("/revenue/ad-event", h.SubmitAdRevenueEvent)
		r.Get("/revenue/distribution/{ref}", h.GetDistribution)

		r.Get("/wallet/{userID}", h.GetWallet)
		r.Get("/wallet/{userID}/transactions", h.GetTransactions)
		r.Get("/wallet/{userID}/summary", h.GetDailySummary)
		r.Post("/wallet/withdraw", h.RequestWithdrawal)

		r.Post("/bonus", h.AwardBonus)

		r.Get("/referral/code/{userID}", h.GetReferralCode)
		r.Post("/referral/code", h.CreateCustomCode)
		r.Get("/referral/link/{userID}", h.GetShareLink)
		r.Post("/referral/apply", h.ApplyReferralCode)

		r.Post("/streak/checkin", h.CheckIn)
		r.Get("/streak/{userID}", h.GetStreak)
	})
}

func (h *MonetizeRestHandler) Router() http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	h.registerRoutes(r)

	return r
}

func (h *MonetizeRestHandler) Start(addr string) {
	server := &http.Server{
		Addr:    addr,
		Handler: h.Router(),
	}

	log.Printf("Monetize REST service running on %s", addr)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("failed to start server: %v", err)
	}
}

// rejectionFor maps a usecase error to an HTTP status and the reason string
// surfaced to the client
func rejectionFor(err error) (int, string) {
	switch {
	case errors.Is(err, xerrors.ErrViewTooShort):
		return http.StatusUnprocessableEntity, "View too short for revenue sharing"
	case errors.Is(err, xerrors.ErrViewTooSmallShare):
		return http.StatusUnprocessableEntity, "View did not cover enough of the video"
	case errors.Is(err, xerrors.ErrNoAdRevenue):
		return http.StatusUnprocessableEntity, "No ad revenue reported for this view"
	case errors.Is(err, xerrors.ErrAmountTooSmall):
		return http.StatusUnprocessableEntity, "Amount too small"
	case errors.Is(err, xerrors.ErrDuplicateEvent):
		return http.StatusConflict, "Duplicate event: impression already settled"
	case errors.Is(err, xerrors.ErrCapExceeded):
		return http.StatusUnprocessableEntity, "Daily earning cap reached"
	case errors.Is(err, xerrors.ErrBonusOverLimit):
		return http.StatusUnprocessableEntity, "Reported bonus exceeds the allowed limit"
	case errors.Is(err, xerrors.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "Insufficient available balance"
	case errors.Is(err, xerrors.ErrSelfReferral):
		return http.StatusUnprocessableEntity, "You cannot apply your own referral code"
	case errors.Is(err, xerrors.ErrAlreadyReferred):
		return http.StatusConflict, "A referral code was already applied for this account"
	case errors.Is(err, xerrors.ErrReferralCodeTaken):
		return http.StatusConflict, "Referral code already taken"
	case errors.Is(err, xerrors.ErrInvalidCodeFormat):
		return http.StatusBadRequest, "Invalid referral code format"
	case errors.Is(err, xerrors.ErrCodeExhausted):
		return http.StatusUnprocessableEntity, "Referral code has no uses left"
	case errors.Is(err, xerrors.ErrCodeExpired):
		return http.StatusUnprocessableEntity, "Referral code has expired"
	case errors.Is(err, xerrors.ErrCodeNotFound):
		return http.StatusNotFound, "Referral code not found"
	case errors.Is(err, xerrors.ErrWalletNotFound):
		return http.StatusNotFound, "Wallet not found"
	case errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, domain.ErrUnknownSubType):
		return http.StatusBadRequest, "Unrecognized earning category"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
