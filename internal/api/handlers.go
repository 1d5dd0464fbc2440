package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/maksimarefev/acdm-platform/internal/auth"
	"github.com/maksimarefev/acdm-platform/internal/dao"
	"github.com/maksimarefev/acdm-platform/internal/db"
	"github.com/maksimarefev/acdm-platform/internal/models"
	"github.com/maksimarefev/acdm-platform/internal/platform"
	"github.com/maksimarefev/acdm-platform/internal/staking"
	"github.com/maksimarefev/acdm-platform/internal/swap"
	"github.com/maksimarefev/acdm-platform/internal/token"
)

// Handler contains dependencies for HTTP handlers. A single mutex serializes
// every engine call so the in-memory ledgers never see concurrent writers.
type Handler struct {
	DB          *db.DB
	Platform    *platform.Platform
	DAO         *dao.Engine
	Staking     *staking.Ledger
	AuthService *auth.AuthService
	Log         *logrus.Logger

	// Ledgers the HTTP surface exposes balances and approvals for.
	Eth  *token.Token
	ACDM *token.Token
	XXX  *token.Token
	LP   *token.Token

	// Router and the pooled token's address, for the liquidity endpoint.
	Router  *swap.Router
	XXXAddr models.Address

	// Minter is the account allowed to mint on the ether and governance
	// ledgers. The faucet mints on its behalf.
	Minter models.Address

	// Broadcast, when set, receives every batch of emitted events.
	Broadcast func([]models.Event)

	mu sync.Mutex
}

// NewHandler creates a new handler
func NewHandler(database *db.DB, p *platform.Platform, d *dao.Engine, s *staking.Ledger,
	authService *auth.AuthService, eth, acdm, xxx *token.Token, log *logrus.Logger) *Handler {
	return &Handler{
		DB:          database,
		Platform:    p,
		DAO:         d,
		Staking:     s,
		AuthService: authService,
		Eth:         eth,
		ACDM:        acdm,
		XXX:         xxx,
		Log:         log,
	}
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, `{"error": "Username and password required"}`, http.StatusBadRequest)
		return
	}

	user, err := h.AuthService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		http.Error(w, `{"error": "Failed to register user"}`, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"address":  user.Address,
	})
}

// Login handles user login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	token, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		http.Error(w, `{"error": "Invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// JWTAuthMiddleware verifies JWT tokens
func (h *Handler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			http.Error(w, `{"error": "Authorization header required"}`, http.StatusUnauthorized)
			return
		}

		// Remove "Bearer " prefix if present
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		address, err := h.AuthService.GetAddressFromToken(tokenString)
		if err != nil {
			http.Error(w, `{"error": "Invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "address", address)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerAddress(r *http.Request) (models.Address, bool) {
	address, ok := r.Context().Value("address").(models.Address)
	return address, ok
}

// statusFor maps engine errors onto HTTP statuses. Anything unrecognized is a
// bad request: the engines only fail on caller mistakes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, platform.ErrOrderNotFound),
		errors.Is(err, dao.ErrProposalNotFound):
		return http.StatusNotFound
	case errors.Is(err, platform.ErrNotOwner),
		errors.Is(err, platform.ErrNotDAO),
		errors.Is(err, platform.ErrNotOrderOwner),
		errors.Is(err, dao.ErrNotChairman),
		errors.Is(err, dao.ErrNotOwner),
		errors.Is(err, staking.ErrNotOwner),
		errors.Is(err, staking.ErrNotDAO):
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

func engineError(w http.ResponseWriter, err error) {
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	http.Error(w, string(body), statusFor(err))
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, errors.New("empty amount")
	}
	return uint256.FromDecimal(s)
}

// orderSnapshots captures the state of every order the given events touched.
// Must be called while holding h.mu: the snapshots read engine state.
func (h *Handler) orderSnapshots(events []models.Event) []models.Order {
	var orders []models.Order
	for _, event := range events {
		var id uint64
		switch e := event.(type) {
		case models.PutOrder:
			id = e.ID
		case models.CancelOrder:
			id = e.ID
		case models.TradeOrder:
			id = e.ID
		default:
			continue
		}
		order, err := h.Platform.Order(id)
		if err != nil {
			h.Log.WithError(err).WithField("order_id", id).Warn("failed to snapshot order")
			continue
		}
		orders = append(orders, order)
	}
	return orders
}

// persist writes emitted events and order snapshots to the database and
// forwards the events to the websocket broadcaster. Persistence failures are
// logged, not surfaced: the in-memory engines are the source of truth.
func (h *Handler) persist(ctx context.Context, events []models.Event, orders []models.Order) {
	for _, event := range events {
		if _, err := h.DB.InsertEvent(ctx, event); err != nil {
			h.Log.WithError(err).WithField("event", event.EventName()).Warn("failed to persist event")
		}
	}
	for i := range orders {
		if err := h.DB.SaveOrder(ctx, &orders[i]); err != nil {
			h.Log.WithError(err).WithField("order_id", orders[i].ID).Warn("failed to save order")
		}
	}
	if h.Broadcast != nil && len(events) > 0 {
		h.Broadcast(events)
	}
}

// RegisterReferral records the caller in the referral registry
func (h *Handler) RegisterReferral(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		Referrer string `json:"referrer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	err := h.Platform.Register(caller, models.Address(req.Referrer))
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"message": "Registered"})
}

// Buy purchases tokens from the current sale round
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		http.Error(w, `{"error": "Invalid value"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	events, err := h.Platform.Buy(caller, value)
	orders := h.orderSnapshots(events)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	h.persist(r.Context(), events, orders)
	json.NewEncoder(w).Encode(map[string]string{"message": "Purchase complete"})
}

// StartTradeRound closes the sale round and opens a trade round
func (h *Handler) StartTradeRound(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	events, err := h.Platform.StartTradeRound()
	orders := h.orderSnapshots(events)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	h.persist(r.Context(), events, orders)
	json.NewEncoder(w).Encode(map[string]string{"message": "Trade round started"})
}

// StartSaleRound closes the trade round and opens a sale round
func (h *Handler) StartSaleRound(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	events, err := h.Platform.StartSaleRound()
	orders := h.orderSnapshots(events)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	h.persist(r.Context(), events, orders)
	json.NewEncoder(w).Encode(map[string]string{"message": "Sale round started"})
}

// PutOrder places a sell order in the current trade round
func (h *Handler) PutOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		Amount string `json:"amount"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, `{"error": "Invalid amount"}`, http.StatusBadRequest)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		http.Error(w, `{"error": "Invalid price"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	events, err := h.Platform.PutOrder(caller, amount, price)
	orders := h.orderSnapshots(events)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	h.persist(r.Context(), events, orders)

	var orderID uint64
	for _, event := range events {
		if put, ok := event.(models.PutOrder); ok {
			orderID = put.ID
		}
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":  "Order placed",
		"order_id": orderID,
	})
}

// CancelOrder cancels an open order
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	orderID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid order ID"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	events, err := h.Platform.CancelOrder(caller, orderID)
	orders := h.orderSnapshots(events)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	h.persist(r.Context(), events, orders)
	json.NewEncoder(w).Encode(map[string]string{"message": "Order canceled"})
}

// RedeemOrder buys from an open order
func (h *Handler) RedeemOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	orderID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid order ID"}`, http.StatusBadRequest)
		return
	}

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		http.Error(w, `{"error": "Invalid value"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	events, err := h.Platform.RedeemOrder(caller, orderID, value)
	orders := h.orderSnapshots(events)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	h.persist(r.Context(), events, orders)
	json.NewEncoder(w).Encode(map[string]string{"message": "Order redeemed"})
}

// GetOrderBook retrieves the active orders of the current trade round
func (h *Handler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	orders := h.Platform.ActiveOrders()
	h.mu.Unlock()

	json.NewEncoder(w).Encode(map[string]interface{}{"orders": orders})
}

// GetUserOrders retrieves a user's order history
func (h *Handler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	orders, err := h.DB.GetUserOrders(r.Context(), caller)
	if err != nil {
		http.Error(w, `{"error": "Failed to retrieve orders"}`, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(orders)
}

// GetPlatformState reports the current round and sale/trade counters
func (h *Handler) GetPlatformState(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	state := map[string]interface{}{
		"round":          h.Platform.Round().String(),
		"round_deadline": h.Platform.RoundDeadline(),
		"token_price":    h.Platform.CurrentTokenPrice().Dec(),
		"tokens_issued":  h.Platform.TokensIssued().Dec(),
		"tokens_sold":    h.Platform.TokensSold().Dec(),
		"trade_volume":   h.Platform.TradeVolume().Dec(),
		"treasury":       h.Platform.Treasury().Dec(),
	}
	h.mu.Unlock()

	json.NewEncoder(w).Encode(state)
}

// GetBalances reports the caller's ledger balances
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	balances := map[string]string{
		"address":       string(caller),
		"eth":           h.Eth.BalanceOf(caller).Dec(),
		h.ACDM.Symbol(): h.ACDM.BalanceOf(caller).Dec(),
		h.XXX.Symbol():  h.XXX.BalanceOf(caller).Dec(),
		"lp":            h.LP.BalanceOf(caller).Dec(),
	}
	h.mu.Unlock()

	json.NewEncoder(w).Encode(balances)
}

// Approve grants a spender an allowance over one of the caller's balances
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		Token   string `json:"token"`
		Spender string `json:"spender"`
		Amount  string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, `{"error": "Invalid amount"}`, http.StatusBadRequest)
		return
	}

	var ledger *token.Token
	switch req.Token {
	case h.ACDM.Symbol():
		ledger = h.ACDM
	case h.XXX.Symbol():
		ledger = h.XXX
	case "lp":
		ledger = h.LP
	default:
		http.Error(w, `{"error": "Unknown token"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	ledger.Approve(caller, models.Address(req.Spender), amount)
	h.mu.Unlock()

	json.NewEncoder(w).Encode(map[string]string{"message": "Approved"})
}

// Demo grants handed out per faucet request.
var (
	faucetEthGrant = uint256.MustFromDecimal("10000000000000000000")  // 10 ether
	faucetXXXGrant = uint256.MustFromDecimal("100000000000000000000") // 100 XXX
)

// Faucet mints demo ether and governance tokens to the caller
func (h *Handler) Faucet(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	err := h.Eth.Mint(h.Minter, faucetEthGrant, caller)
	if err == nil {
		err = h.XXX.Mint(h.Minter, faucetXXXGrant, caller)
	}
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"message": "Funds granted",
		"eth":     faucetEthGrant.Dec(),
		"xxx":     faucetXXXGrant.Dec(),
	})
}

// AddLiquidity deposits ether and governance tokens into the swap pool in
// exchange for the LP tokens the staking ledger accepts
func (h *Handler) AddLiquidity(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		Amount string `json:"amount"`
		Value  string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, `{"error": "Invalid amount"}`, http.StatusBadRequest)
		return
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		http.Error(w, `{"error": "Invalid value"}`, http.StatusBadRequest)
		return
	}

	deadline := time.Now().Add(15 * time.Second)
	zero := uint256.NewInt(0)

	h.mu.Lock()
	tokenIn, ethIn, liquidity, err := h.Router.AddLiquidityETH(
		caller, h.XXXAddr, amount, zero, zero, caller, deadline, value)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"token_in":  tokenIn.Dec(),
		"eth_in":    ethIn.Dec(),
		"liquidity": liquidity.Dec(),
	})
}

// Stake deposits governance tokens into the staking ledger
func (h *Handler) Stake(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, `{"error": "Invalid amount"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	err = h.Staking.Stake(caller, amount)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"message": "Staked"})
}

// Unstake returns the caller's whole staked balance
func (h *Handler) Unstake(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	err := h.Staking.Unstake(caller)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"message": "Unstaked"})
}

// Claim pays out the caller's accrued staking reward
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	err := h.Staking.Claim(caller)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"message": "Reward claimed"})
}

// GetStake reports the caller's stake and the ledger parameters
func (h *Handler) GetStake(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	state := map[string]interface{}{
		"stake":                      h.Staking.GetStake(caller).Dec(),
		"total_stake":                h.Staking.TotalStake().Dec(),
		"reward_percentage":          h.Staking.RewardPercentage(),
		"reward_period_seconds":      int64(h.Staking.RewardPeriod().Seconds()),
		"withdrawal_timeout_seconds": int64(h.Staking.StakeWithdrawalTimeout().Seconds()),
	}
	h.mu.Unlock()

	json.NewEncoder(w).Encode(state)
}

// AddProposal creates a governance proposal forwarding an encoded call
func (h *Handler) AddProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		Target      string            `json:"target"`
		Method      string            `json:"method"`
		Args        []json.RawMessage `json:"args"`
		Description string            `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Method == "" {
		http.Error(w, `{"error": "Method required"}`, http.StatusBadRequest)
		return
	}

	callData, err := json.Marshal(models.EncodedCall{Method: req.Method, Args: req.Args})
	if err != nil {
		http.Error(w, `{"error": "Invalid call data"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	event, err := h.DAO.AddProposal(caller, callData, models.Address(req.Target), req.Description)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	h.persist(r.Context(), []models.Event{event}, nil)

	created := event.(models.ProposalCreated)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":     "Proposal created",
		"proposal_id": created.ID,
	})
}

// Vote records a stake-weighted vote on a proposal
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(r)
	if !ok {
		http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	proposalID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid proposal ID"}`, http.StatusBadRequest)
		return
	}

	var req struct {
		Support bool `json:"support"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	err = h.DAO.Vote(caller, proposalID, req.Support)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"message": "Vote recorded"})
}

// FinishProposal resolves a proposal past its deadline
func (h *Handler) FinishProposal(w http.ResponseWriter, r *http.Request) {
	proposalID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid proposal ID"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	event, err := h.DAO.FinishProposal(proposalID)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	h.persist(r.Context(), []models.Event{event}, nil)
	json.NewEncoder(w).Encode(map[string]interface{}{"result": event})
}

// GetProposal retrieves a proposal snapshot
func (h *Handler) GetProposal(w http.ResponseWriter, r *http.Request) {
	proposalID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid proposal ID"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	proposal, err := h.DAO.Proposal(proposalID)
	h.mu.Unlock()
	if err != nil {
		engineError(w, err)
		return
	}

	json.NewEncoder(w).Encode(proposal)
}

// GetEvents retrieves the most recent platform events
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, `{"error": "Invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := h.DB.ListEvents(r.Context(), limit)
	if err != nil {
		http.Error(w, `{"error": "Failed to retrieve events"}`, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(events)
}
