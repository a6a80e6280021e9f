package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/logging"
	"checkout-service/internal/repository"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const cartCacheTTL = 10 * time.Second

type Handler struct {
	checkout *services.CheckoutService
	coupons  *services.CouponService
	carts    *services.CartService
	rdb      *redis.Client
}

func NewHandler(checkout *services.CheckoutService, coupons *services.CouponService, carts *services.CartService, rdb *redis.Client) *Handler {
	return &Handler{checkout: checkout, coupons: coupons, carts: carts, rdb: rdb}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, auth *Auth) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := r.Group("/api")

	user := api.Group("", auth.Require())
	user.POST("/checkout", h.Checkout)
	user.POST("/coupons/validate", h.ValidateCoupon)
	user.GET("/cart", h.GetCart)
	user.POST("/cart", h.AddToCart)
	user.GET("/orders", h.ListOrders)
	user.GET("/orders/:id", h.GetOrder)

	admin := api.Group("", auth.RequireAdmin())
	admin.GET("/coupons", h.ListCoupons)
	admin.POST("/coupons", h.CreateCoupon)
}

func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shipping address is required"})
		return
	}

	order, err := h.checkout.Checkout(c.Request.Context(), services.CheckoutInput{
		UserID:          userID(c),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
		CouponCode:      req.CouponCode,
		Notes:           req.Notes,
		IdempotencyKey:  c.GetHeader("X-Idempotency-Key"),
	})
	if err != nil {
		c.JSON(checkoutStatus(err), gin.H{"error": err.Error()})
		return
	}

	h.invalidateCart(userID(c))

	c.JSON(http.StatusOK, CheckoutResponse{
		Order: OrderSummary{
			ID:          order.ID,
			OrderNumber: order.OrderNumber,
			TotalAmount: order.TotalAmount,
			Status:      string(order.Status),
		},
	})
}

// checkoutStatus maps domain rejections to 4xx; anything unrecognized
// is a persistence failure.
func checkoutStatus(err error) int {
	var unavailable *domain.ProductUnavailableError
	var stock *domain.InsufficientStockError
	var minimum *domain.CouponMinimumError
	switch {
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrCouponNotFound),
		errors.Is(err, domain.ErrCouponExpired),
		errors.Is(err, domain.ErrCouponUsageExceeded),
		errors.As(err, &unavailable),
		errors.As(err, &stock),
		errors.As(err, &minimum):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrCheckoutInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) ValidateCoupon(c *gin.Context) {
	var req ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and a positive amount are required"})
		return
	}

	result, err := h.coupons.Validate(c.Request.Context(), req.Code, decimal.NewFromFloat(req.Amount))
	if err != nil {
		var minimum *domain.CouponMinimumError
		switch {
		case errors.Is(err, domain.ErrCouponNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrCouponExpired),
			errors.Is(err, domain.ErrCouponUsageExceeded),
			errors.As(err, &minimum):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, ValidateCouponResponse{
		Valid:  true,
		Coupon: couponInfo(result.Coupon),
		Calculation: CouponCalculation{
			OriginalAmount: result.OriginalAmount,
			Discount:       result.Discount,
			FinalAmount:    result.FinalAmount,
		},
	})
}

func (h *Handler) GetCart(c *gin.Context) {
	uid := userID(c)
	cacheKey := cartCacheKey(uid)

	ctx := c.Request.Context()
	if b, err := h.rdb.Get(ctx, cacheKey).Result(); err == nil {
		var resp CartResponse
		if json.Unmarshal([]byte(b), &resp) == nil {
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	items, total, err := h.carts.GetCart(ctx, uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if items == nil {
		items = []domain.CartItem{}
	}

	resp := CartResponse{Cart: items, Total: total}
	if data, err := json.Marshal(resp); err == nil {
		h.rdb.Set(ctx, cacheKey, data, cartCacheTTL)
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) AddToCart(c *gin.Context) {
	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}

	item, err := h.carts.AddItem(c.Request.Context(), userID(c), req.ProductID, req.Quantity)
	if err != nil {
		var unavailable *domain.ProductUnavailableError
		var stock *domain.InsufficientStockError
		switch {
		case errors.Is(err, domain.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.As(err, &unavailable), errors.As(err, &stock):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	h.invalidateCart(userID(c))

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.checkout.ListOrders(c.Request.Context(), userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, err := h.checkout.GetOrder(c.Request.Context(), userID(c), id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) ListCoupons(c *gin.Context) {
	filter := repository.CouponFilter{
		Search:   c.Query("search"),
		Type:     c.Query("type"),
		SortBy:   c.DefaultQuery("sortBy", "created_at"),
		SortDesc: c.DefaultQuery("sortOrder", "desc") == "desc",
	}
	if status := c.Query("status"); status != "" {
		active := status == "true"
		filter.Status = &active
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	coupons, total, err := h.coupons.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if coupons == nil {
		coupons = []domain.Coupon{}
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	c.JSON(http.StatusOK, ListCouponsResponse{
		Coupons: coupons,
		Pagination: Pagination{
			CurrentPage: filter.Page,
			TotalPages:  totalPages,
			TotalItems:  total,
			HasNextPage: filter.Page < totalPages,
			HasPrevPage: filter.Page > 1,
			Limit:       filter.Limit,
		},
	})
}

func (h *Handler) CreateCoupon(c *gin.Context) {
	var req CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and discount_value are required"})
		return
	}

	coupon := &domain.Coupon{
		Code:           req.Code,
		Description:    req.Description,
		DiscountType:   domain.DiscountType(req.DiscountType),
		DiscountValue:  decimal.NewFromFloat(req.DiscountValue),
		MinOrderAmount: decimal.NewFromFloat(req.MinOrderAmount),
		MaxUsage:       req.MaxUsage,
		ValidUntil:     req.ValidUntil,
		IsActive:       true,
	}
	if req.ValidFrom != nil {
		coupon.ValidFrom = *req.ValidFrom
	} else {
		coupon.ValidFrom = time.Now()
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}

	if err := h.coupons.Create(c.Request.Context(), coupon); err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateCoupon),
			errors.Is(err, services.ErrInvalidDiscount),
			errors.Is(err, services.ErrPercentTooHigh):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"coupon": coupon})
}

func (h *Handler) invalidateCart(uid uint64) {
	if err := h.rdb.Del(context.Background(), cartCacheKey(uid)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		logging.Base().Warn("invalidate cart cache", "error", err, "user_id", uid)
	}
}

func cartCacheKey(userID uint64) string {
	return "cart:user:" + strconv.FormatUint(userID, 10)
}
