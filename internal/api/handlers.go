package api

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"foobar/internal/models"

	"github.com/shopspring/decimal"
)

// handleAccounts serves GET /api/v1/accounts/{card}: the kiosk card
// scan. Non-numeric card ids are a 400, unknown cards a 404.
func (s *HTTPServer) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/accounts/")
	if raw == "" || strings.Contains(raw, "/") {
		writeError(w, http.StatusBadRequest, "card number is required")
		return
	}

	cardNumber, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "card number must be numeric")
		return
	}

	snapshot, err := s.accounts.GetSnapshotByCard(r.Context(), cardNumber)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *HTTPServer) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createPurchase(w, r)
	case http.MethodGet:
		s.listPurchases(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// createPurchase starts a purchase. Card purchases carry the signed
// token from the card scan; cash purchases have no account at all.
func (s *HTTPServer) createPurchase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccountID string                `json:"account_id"`
		Token     string                `json:"token"`
		Items     []models.PurchaseLine `json:"items"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items is required")
		return
	}

	if body.AccountID != "" {
		subject, err := s.tokens.Verify(body.Token)
		if err != nil || subject != body.AccountID {
			writeError(w, http.StatusUnauthorized, "invalid account token")
			return
		}
	}

	purchase, err := s.purchases.Create(r.Context(), body.AccountID, body.Items)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

func (s *HTTPServer) listPurchases(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(r.URL.Query().Get("account"))
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "account is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	purchases, err := s.purchases.ListByAccount(r.Context(), accountID, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
}

// handlePurchaseByID routes GET /purchases/{id} and
// POST /purchases/{id}/finalize|cancel.
func (s *HTTPServer) handlePurchaseByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/purchases/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "purchase id is required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		purchase, err := s.purchases.Get(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, purchase)
	case action == "finalize" && r.Method == http.MethodPost:
		purchase, err := s.purchases.Finalize(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if purchase.AccountID != "" {
			s.accounts.InvalidateAccount(r.Context(), purchase.AccountID)
		}
		writeJSON(w, http.StatusOK, purchase)
	case action == "cancel" && r.Method == http.MethodPost:
		purchase, err := s.purchases.Cancel(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if purchase.AccountID != "" {
			s.accounts.InvalidateAccount(r.Context(), purchase.AccountID)
		}
		writeJSON(w, http.StatusOK, purchase)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		includeInactive := r.URL.Query().Get("include_inactive") == "true"
		products, err := s.products.List(r.Context(), includeInactive)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		// Deliberately not models.Product: stock enters through
		// deliveries and corrections, never through product creation.
		var body struct {
			Code        string          `json:"code"`
			Name        string          `json:"name"`
			Description string          `json:"description"`
			CategoryID  int64           `json:"category_id"`
			Price       decimal.Decimal `json:"price"`
			IsActive    bool            `json:"is_active"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if body.Code == "" || body.Name == "" {
			writeError(w, http.StatusBadRequest, "code and name are required")
			return
		}
		product := models.Product{
			Code:        body.Code,
			Name:        body.Name,
			Description: body.Description,
			CategoryID:  body.CategoryID,
			Price:       body.Price,
			IsActive:    body.IsActive,
		}
		if err := s.products.Create(r.Context(), &product); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, product)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// productPatch carries the updatable product fields; nil means leave
// unchanged.
type productPatch struct {
	Name           *string          `json:"name"`
	Description    *string          `json:"description"`
	CategoryID     *int64           `json:"category_id"`
	Price          *decimal.Decimal `json:"price"`
	IsActive       *bool            `json:"is_active"`
	BaseStockLevel *int64           `json:"base_stock_level"`
}

func (s *HTTPServer) handleProductByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/products/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "product id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, err := s.products.Get(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case http.MethodPatch:
		s.patchProduct(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) patchProduct(w http.ResponseWriter, r *http.Request, id string) {
	var patch productPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	product, err := s.products.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if patch.Name != nil {
		product.Name = *patch.Name
	}
	if patch.Description != nil {
		product.Description = *patch.Description
	}
	if patch.CategoryID != nil {
		product.CategoryID = *patch.CategoryID
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	if patch.IsActive != nil {
		product.IsActive = *patch.IsActive
	}

	if err := s.products.Update(r.Context(), product); err != nil {
		s.writeServiceError(w, err)
		return
	}

	if patch.BaseStockLevel != nil {
		if err := s.products.SetBaseStockLevel(r.Context(), id, *patch.BaseStockLevel); err != nil {
			s.writeServiceError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, product)
}

// handleWallets routes GET /wallets/{owner} and
// POST /wallets/{owner}/deposit|correction.
func (s *HTTPServer) handleWallets(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/wallets/")
	owner, action, _ := strings.Cut(rest, "/")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "wallet owner is required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		balance, err := s.accounts.GetBalance(r.Context(), owner)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		transactions, err := s.accounts.ListWalletTransactions(r.Context(), owner, 50)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"balance": balance, "transactions": transactions})
	case action == "deposit" && r.Method == http.MethodPost:
		var body struct {
			Amount  decimal.Decimal `json:"amount"`
			Comment string          `json:"comment"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		trx, err := s.accounts.Deposit(r.Context(), owner, body.Amount, body.Comment)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.accounts.InvalidateAccount(r.Context(), owner)
		writeJSON(w, http.StatusCreated, trx)
	case action == "correction" && r.Method == http.MethodPost:
		var body struct {
			Balance decimal.Decimal `json:"balance"`
			Comment string          `json:"comment"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		trx, err := s.accounts.SetBalance(r.Context(), owner, body.Balance, body.Comment)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.accounts.InvalidateAccount(r.Context(), owner)
		writeJSON(w, http.StatusCreated, trx)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Supplier   string `json:"supplier"`
		ReportPath string `json:"report_path"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Supplier == "" || body.ReportPath == "" {
		writeError(w, http.StatusBadRequest, "supplier and report_path are required")
		return
	}

	delivery, err := s.deliveries.Create(r.Context(), body.Supplier, body.ReportPath)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, delivery)
}

// handleDeliveryByID routes GET /deliveries/{id} and
// POST /deliveries/{id}/populate|process.
func (s *HTTPServer) handleDeliveryByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/deliveries/")
	rawID, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "delivery id must be numeric")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		delivery, err := s.deliveries.Get(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, delivery)
	case action == "populate" && r.Method == http.MethodPost:
		delivery, err := s.deliveries.Populate(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, delivery)
	case action == "process" && r.Method == http.MethodPost:
		if err := s.deliveries.Process(r.Context(), id); err != nil {
			s.writeServiceError(w, err)
			return
		}
		delivery, err := s.deliveries.Get(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, delivery)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleStocktakes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		stocktake, err := s.stocktakes.Initiate(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, stocktake)
	case http.MethodGet:
		stocktake, err := s.stocktakes.GetOpen(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stocktake)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleStocktakeByID routes the stocktake lifecycle:
//
//	POST /stocktakes/{id}/assign        {owner_id}
//	POST /stocktakes/{id}/finalize
//	POST /stocktakes/chunks/{id}/finalize {owner_id}
//	POST /stocktakes/items/{id}           {owner_id, qty}
func (s *HTTPServer) handleStocktakeByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/stocktakes/")
	switch {
	case strings.HasPrefix(rest, "chunks/"):
		s.finalizeChunk(w, r, strings.TrimPrefix(rest, "chunks/"))
	case strings.HasPrefix(rest, "items/"):
		s.setStocktakeItem(w, r, strings.TrimPrefix(rest, "items/"))
	default:
		s.stocktakeAction(w, r, rest)
	}
}

func (s *HTTPServer) stocktakeAction(w http.ResponseWriter, r *http.Request, rest string) {
	rawID, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "stocktake id must be numeric")
		return
	}

	switch action {
	case "assign":
		var body struct {
			OwnerID string `json:"owner_id"`
		}
		if err := decodeBody(r, &body); err != nil || body.OwnerID == "" {
			writeError(w, http.StatusBadRequest, "owner_id is required")
			return
		}
		chunk, err := s.stocktakes.AssignChunk(r.Context(), id, body.OwnerID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chunk)
	case "finalize":
		if err := s.stocktakes.Finalize(r.Context(), id); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": models.StatusFinalized})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) finalizeChunk(w http.ResponseWriter, r *http.Request, rest string) {
	rawID, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || action != "finalize" {
		writeError(w, http.StatusBadRequest, "chunk id must be numeric")
		return
	}

	var body struct {
		OwnerID string `json:"owner_id"`
	}
	if err := decodeBody(r, &body); err != nil || body.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	if err := s.stocktakes.FinalizeChunk(r.Context(), id, body.OwnerID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.StatusFinalized})
}

func (s *HTTPServer) setStocktakeItem(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "item id must be numeric")
		return
	}

	var body struct {
		OwnerID string `json:"owner_id"`
		Qty     int64  `json:"qty"`
	}
	if err := decodeBody(r, &body); err != nil || body.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	if err := s.stocktakes.SetItemQty(r.Context(), id, body.OwnerID, body.Qty); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "qty": body.Qty})
}

// handleSuppliers serves POST /api/v1/suppliers/{name}/refill.
func (s *HTTPServer) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/suppliers/")
	name, action, _ := strings.Cut(rest, "/")
	if name == "" || action != "refill" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	ordered, err := s.ordering.OrderRefill(r.Context(), name, time.Now())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ordered": ordered})
}

// handleStockReport builds the Excel stock report and streams it back.
func (s *HTTPServer) handleStockReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path, err := s.exporter.StockReport(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	serveWorkbook(w, r, path)
}

// handlePurchasesReport builds the purchases workbook for a date range
// (start inclusive, end exclusive, both YYYY-MM-DD) and streams it back.
func (s *HTTPServer) handlePurchasesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be a YYYY-MM-DD date")
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be a YYYY-MM-DD date")
		return
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "end must be after start")
		return
	}

	path, err := s.exporter.PurchasesReport(r.Context(), start, end)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	serveWorkbook(w, r, path)
}

func serveWorkbook(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(path))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, path)
}
