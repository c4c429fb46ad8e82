package server

import (
	"errors"

	"github.com/kataras/iris/v12"

	"github.com/sandeep2k01/BUYFLUX-sub000/internal/auth"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/config"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/datamodels/product"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/gateway"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/infra/mq"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/infra/redis"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/middleware"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/repository/mysql"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/service"
)

// failCheckout 把结算链路的错误翻成前端可辨别的三类提示：
// 换支付方式重试（签名）、调整购物车（库存）、稍后再试（瞬态），其余按内部错误处理。
func failCheckout(ctx iris.Context, err error) {
	if ise, ok := service.IsInsufficientStock(err); ok {
		ctx.StopWithJSON(409, iris.Map{
			"code":  409,
			"error": "INSUFFICIENT_STOCK",
			"msg":   err.Error(),
			"data": iris.Map{
				"product_id": ise.ProductID,
				"title":      ise.Title,
				"requested":  ise.Requested,
				"available":  ise.Available,
			},
		})
		return
	}
	switch {
	case errors.Is(err, service.ErrSignatureMismatch):
		ctx.StopWithJSON(400, iris.Map{"code": 400, "error": "INVALID_SIGNATURE", "msg": err.Error()})
	case errors.Is(err, service.ErrAmountMismatch):
		ctx.StopWithJSON(400, iris.Map{"code": 400, "error": "AMOUNT_MISMATCH", "msg": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrProductNotFound):
		ctx.StopWithJSON(404, iris.Map{"code": 404, "error": "NOT_FOUND", "msg": err.Error()})
	case errors.Is(err, service.ErrTransientConflict):
		ctx.StopWithJSON(503, iris.Map{"code": 503, "error": "TRY_AGAIN", "msg": err.Error()})
	case errors.Is(err, service.ErrInvalidOrderState):
		ctx.StopWithJSON(409, iris.Map{"code": 409, "error": "INVALID_STATE", "msg": err.Error()})
	default:
		ctx.StopWithJSON(500, iris.Map{"code": 500, "error": "INTERNAL", "msg": "服务器开小差了，请稍后重试"})
	}
}

// RegisterRoutes 注册所有前台 HTTP 路由
func RegisterRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 仓储与服务
	userRepo := mysql.NewUserRepository(db)
	productRepo := mysql.NewProductRepository(db)
	orderRepo := mysql.NewOrderRepository(db)

	userSvc := service.NewUserService(userRepo, &cfg.JWT)
	productSvc := service.NewProductService(productRepo)
	orderSvc := service.NewOrderService(orderRepo)

	gw := gateway.NewRazorpayClient(&cfg.Razorpay)
	settlementSvc := service.NewSettlementService(db, mqConn)
	checkoutSvc := service.NewCheckoutService(productRepo, orderRepo, settlementSvc, gw, &cfg.Razorpay, redisClient)

	api := app.Party("/api")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"code": 0,
			"msg":  "ok",
		})
	})

	// 用户注册/登录
	api.Post("/register", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		u, err := userSvc.Register(ctx.Request().Context(), req.Username, req.Password)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"id": u.ID, "username": u.Username}})
	})

	api.Post("/login", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, err := userSvc.Login(ctx.Request().Context(), req.Username, req.Password)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"token": token}})
	})

	// 需要登录的接口
	authAPI := api.Party("/", func(ctx iris.Context) {
		token := ctx.GetHeader("Authorization")
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "error": "UNAUTHENTICATED", "msg": "missing token"})
			return
		}
		claims, err := auth.ParseToken(&cfg.JWT, token)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "error": "UNAUTHENTICATED", "msg": "invalid token"})
			return
		}
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("username", claims.Username)
		ctx.Next()
	})

	// 商品列表（支持按分类筛选 + 关键字搜索）
	authAPI.Get("/products", func(ctx iris.Context) {
		category := ctx.URLParam("category")
		keyword := ctx.URLParam("q")
		var list []*product.Product
		var err error
		if category != "" {
			list, err = productSvc.ListByCategory(ctx.Request().Context(), category)
		} else {
			list, err = productSvc.ListOnline(ctx.Request().Context())
		}
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		if keyword != "" {
			list = filterByKeyword(list, keyword)
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 商品详情
	authAPI.Get("/products/{id:uint64}", func(ctx iris.Context) {
		pid, _ := ctx.Params().GetUint64("id")
		p, err := productSvc.GetByID(ctx.Request().Context(), int64(pid))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "商品不存在"})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	// 自己的订单列表
	authAPI.Get("/orders", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		list, err := orderSvc.ListByUser(ctx.Request().Context(), userID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// ---------------- 结算链路 ----------------

	checkout := authAPI.Party("/checkout")
	checkout.Use(middleware.CheckoutRateLimit())

	// 创建支付意向
	checkout.Post("/intent", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		var req service.IntentRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		res, err := checkoutSvc.CreateOrderIntent(ctx.Request().Context(), userID, &req)
		if err != nil {
			failCheckout(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": res})
	})

	// 网关回调转发：客户端拿到支付结果后提交校验
	checkout.Post("/verify", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			OrderID          int64  `json:"order_id"`
			GatewayOrderID   string `json:"gateway_order_id"`
			GatewayPaymentID string `json:"gateway_payment_id"`
			Signature        string `json:"signature"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		err := checkoutSvc.VerifyPayment(ctx.Request().Context(), userID, req.OrderID,
			req.GatewayOrderID, req.GatewayPaymentID, req.Signature)
		if err != nil {
			failCheckout(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"success": true}})
	})

	// 货到付款下单
	checkout.Post("/cod", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		var req service.CodRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		o, err := checkoutSvc.PlaceCodOrder(ctx.Request().Context(), userID, &req)
		if err != nil {
			failCheckout(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"order_id": o.ID}})
	})
}
