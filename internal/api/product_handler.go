package api

import (
	"log/slog"
	"net/http"

	"github.com/stackmesh/commerce-api/internal/api/shared"
	"github.com/stackmesh/commerce-api/internal/service"
	"github.com/stackmesh/commerce-api/internal/store"
)

// ProductHandler serves the catalog endpoints.
type ProductHandler struct {
	products *service.ProductService
	logger   *slog.Logger
}

// NewProductHandler creates a ProductHandler.
func NewProductHandler(products *service.ProductService, log *slog.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		logger:   log.With(slog.String("handler", "product")),
	}
}

// Create handles POST /products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error(), nil)
		return
	}
	if err := validateRequest(req); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	product, err := h.products.Create(r.Context(), req.Name, req.Description, req.SKU, req.Price, req.Stock)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusCreated, "product created", NewProductResponse(product))
}

// Get handles GET /products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	product, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "", NewProductResponse(product))
}

// List handles GET /products. Price bounds arrive as price_min and
// price_max query parameters.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	priceMin, err := parseFloatParam(r.URL.Query().Get("price_min"), "price_min")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	priceMax, err := parseFloatParam(r.URL.Query().Get("price_max"), "price_max")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	result, err := h.products.List(r.Context(), opts, priceMin, priceMax)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithPage(w, "", NewProductResponses(result.Items), pageMeta(result))
}

// Update handles PATCH /products/{id}.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	var req UpdateProductRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error(), nil)
		return
	}
	if err := validateRequest(req); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	product, err := h.products.Update(r.Context(), store.ProductPatch{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		IsActive:    req.IsActive,
	})
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "product updated", NewProductResponse(product))
}

// AdjustStock handles POST /products/{id}/stock.
func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	var req AdjustStockRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error(), nil)
		return
	}
	if req.Delta == 0 {
		RespondWithServiceError(w, h.logger, service.NewFieldError("delta", "delta must not be zero"))
		return
	}

	if err := h.products.AdjustStock(r.Context(), id, req.Delta); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	product, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "stock adjusted", NewProductResponse(product))
}

// Delete handles DELETE /products/{id}.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "product deleted", nil)
}

// CreateBatch handles POST /products/batch.
func (h *ProductHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchCreateProductsRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error(), nil)
		return
	}
	if err := validateRequest(req); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	inputs := make([]service.ProductInput, len(req.Products))
	for i, p := range req.Products {
		inputs[i] = service.ProductInput{
			Name:        p.Name,
			Description: p.Description,
			SKU:         p.SKU,
			Price:       p.Price,
			Stock:       p.Stock,
		}
	}

	products, err := h.products.CreateBatch(r.Context(), inputs)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusCreated, "products created", NewProductResponses(products))
}

// UpdateBatch handles PATCH /products/batch.
func (h *ProductHandler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchUpdateProductsRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error(), nil)
		return
	}
	if err := validateRequest(req); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	patches := make([]store.ProductPatch, len(req.Products))
	for i, p := range req.Products {
		patches[i] = store.ProductPatch{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Stock:       p.Stock,
			IsActive:    p.IsActive,
		}
	}

	updated, err := h.products.UpdateBatch(r.Context(), patches)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "products updated", BatchCountResponse{Count: updated})
}

// DeleteBatch handles DELETE /products/batch.
func (h *ProductHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchDeleteProductsRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error(), nil)
		return
	}
	if err := validateRequest(req); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	deleted, err := h.products.DeleteBatch(r.Context(), req.IDs)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "products deleted", BatchCountResponse{Count: deleted})
}
