package gateway

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hagglex/native/stake"
	"hagglex/native/token"
)

type positionResponse struct {
	ID                 uint64 `json:"id"`
	Owner              string `json:"owner"`
	Staked             string `json:"staked"`
	RateBps            uint64 `json:"rate_bps"`
	InterestPaid       string `json:"interest_paid"`
	LastPaidAt         int64  `json:"last_paid_at"`
	StakedAt           int64  `json:"staked_at"`
	ExpiresAt          int64  `json:"expires_at"`
	ThreeMonthStakers  uint64 `json:"three_month_stakers"`
	SixMonthStakers    uint64 `json:"six_month_stakers"`
	TwelveMonthStakers uint64 `json:"twelve_month_stakers"`
}

func toPositionResponse(p *stake.Position) positionResponse {
	return positionResponse{
		ID:                 p.ID,
		Owner:              p.Owner,
		Staked:             p.Staked.String(),
		RateBps:            p.RateBps,
		InterestPaid:       p.InterestPaid.String(),
		LastPaidAt:         p.LastPaidAt,
		StakedAt:           p.StakedAt,
		ExpiresAt:          p.ExpiresAt,
		ThreeMonthStakers:  p.ThreeMonthStakers,
		SixMonthStakers:    p.SixMonthStakers,
		TwelveMonthStakers: p.TwelveMonthStakers,
	}
}

func decode(r *http.Request, into interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("%w: %v", stake.ErrInvalid, err)
	}
	return nil
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	cfg, err := s.engine.Config()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"staking_token_contract":  cfg.StakingTokenContract,
		"staking_token_symbol":    cfg.StakingTokenSymbol.Code,
		"staking_token_precision": cfg.StakingTokenSymbol.Precision,
		"interest_token_contract": cfg.InterestTokenContract,
		"interest_token_symbol":   cfg.InterestTokenSymbol.Code,
		"price":                   cfg.EffectivePrice().RatString(),
		"paused":                  cfg.IsPaused(),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	ordering, err := stake.ParseOrdering(r.URL.Query().Get("ordering"))
	if err != nil {
		writeError(w, err)
		return
	}
	positions, err := s.engine.Positions(ordering)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, toPositionResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, fmt.Errorf("%w: position id must be numeric", stake.ErrInvalid))
		return
	}
	position, err := s.engine.Position(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPositionResponse(position))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	available, err := s.engine.AvailableBalance(name)
	if err != nil {
		writeError(w, err)
		return
	}
	staked, err := s.engine.StakedBalance(name)
	if err != nil {
		writeError(w, err)
		return
	}
	deposited, err := available.Add(staked)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"owner":     name,
		"available": available.String(),
		"staked":    staked.String(),
		"deposited": deposited.String(),
	})
}

func (s *Server) handleTierStaked(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.ParseUint(chi.URLParam(r, "days"), 10, 16)
	if err != nil {
		writeError(w, fmt.Errorf("%w: tier days must be numeric", stake.ErrInvalid))
		return
	}
	total, err := s.engine.TotalStakedForDuration(uint16(days))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"duration_days": strconv.FormatUint(days, 10),
		"total_staked":  total.String(),
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From     string `json:"from"`
		Quantity string `json:"quantity"`
		Memo     string `json:"memo"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	quantity, err := token.ParseAsset(req.Quantity)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", stake.ErrInvalid, err))
		return
	}
	cfg, err := s.engine.Config()
	if err != nil {
		writeError(w, err)
		return
	}
	// The deposit hook runs after the token transfer has committed, so reject
	// up front anything the hook would bounce. Otherwise the funds would sit
	// in the vault without a credited deposit.
	if cfg.IsPaused() {
		writeError(w, fmt.Errorf("%w: module is paused", stake.ErrState))
		return
	}
	if !quantity.Symbol.Equal(cfg.StakingTokenSymbol) {
		writeError(w, fmt.Errorf("%w: only %s deposits are allowed", stake.ErrInvalid, cfg.StakingTokenSymbol.Code))
		return
	}
	if err := s.registry.Transfer(cfg.StakingTokenContract, req.From, s.engine.Authority(), quantity, req.Memo); err != nil {
		writeError(w, err)
		return
	}
	available, err := s.engine.AvailableBalance(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"owner":     req.From,
		"available": available.String(),
	})
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner        string `json:"owner"`
		Quantity     string `json:"quantity"`
		DurationDays uint16 `json:"duration_days"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	quantity, err := token.ParseAsset(req.Quantity)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", stake.ErrInvalid, err))
		return
	}
	position, err := s.engine.Stake(req.Owner, quantity, req.DurationDays)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPositionResponse(position))
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner      string `json:"owner"`
		PositionID uint64 `json:"position_id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.Unstake(req.Owner, req.PositionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unstaked"})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner      string `json:"owner"`
		PositionID uint64 `json:"position_id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	paid, err := s.engine.Claim(req.Owner, req.PositionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paid": paid.String()})
}

func (s *Server) handleClaimAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner string `json:"owner"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	results, err := s.engine.ClaimAll(req.Owner)
	if err != nil && len(results) == 0 {
		writeError(w, err)
		return
	}
	type claimEntry struct {
		PositionID uint64 `json:"position_id"`
		Paid       string `json:"paid,omitempty"`
		Error      string `json:"error,omitempty"`
	}
	out := make([]claimEntry, 0, len(results))
	for _, result := range results {
		entry := claimEntry{PositionID: result.PositionID}
		if result.Err != nil {
			entry.Error = result.Err.Error()
		} else {
			entry.Paid = result.Paid.String()
		}
		out = append(out, entry)
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, out)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner    string `json:"owner"`
		Quantity string `json:"quantity"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	quantity, err := token.ParseAsset(req.Quantity)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", stake.ErrInvalid, err))
		return
	}
	if err := s.engine.Withdraw(req.Owner, quantity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"withdrawn": quantity.String()})
}

func (s *Server) handleWithdrawAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner string `json:"owner"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	withdrawn, err := s.engine.WithdrawAll(req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"withdrawn": withdrawn.String()})
}

// Admin handlers act as the authority account; the bearer-token middleware
// has already vouched for the caller.

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	if err := s.engine.Pause(s.engine.Authority()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleActivate(w http.ResponseWriter, _ *http.Request) {
	if err := s.engine.Activate(s.engine.Authority()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price string `json:"price"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	price, ok := new(big.Rat).SetString(req.Price)
	if !ok {
		writeError(w, fmt.Errorf("%w: price %q is not a number", stake.ErrInvalid, req.Price))
		return
	}
	if err := s.engine.SetPrice(s.engine.Authority(), price); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"price": price.RatString()})
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StakingContract   string `json:"staking_contract"`
		StakingSymbol     string `json:"staking_symbol"`
		StakingPrecision  uint8  `json:"staking_precision"`
		InterestContract  string `json:"interest_contract"`
		InterestSymbol    string `json:"interest_symbol"`
		InterestPrecision uint8  `json:"interest_precision"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	stakingSym, err := token.NewSymbol(req.StakingSymbol, req.StakingPrecision)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", stake.ErrInvalid, err))
		return
	}
	interestSym, err := token.NewSymbol(req.InterestSymbol, req.InterestPrecision)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", stake.ErrInvalid, err))
		return
	}
	if err := s.engine.SetConfig(s.engine.Authority(), req.StakingContract, stakingSym, req.InterestContract, interestSym); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Value uint8  `json:"value"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.SetSetting(s.engine.Authority(), req.Name, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleRewind(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PositionID uint64 `json:"position_id"`
		Days       uint32 `json:"days"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.Rewind(s.engine.Authority(), req.PositionID, req.Days); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rewound"})
}
