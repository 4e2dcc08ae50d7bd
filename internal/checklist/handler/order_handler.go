package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/service"
)

// OrderHandler 订单侧接口：门禁查询与结束服务
type OrderHandler struct {
	orders    *service.OrderService
	checklist *service.ChecklistService
}

func NewOrderHandler(orders *service.OrderService, checklist *service.ChecklistService) *OrderHandler {
	return &OrderHandler{orders: orders, checklist: checklist}
}

// Gate 订单能否结束服务
// GET /api/v1/orders/:orderId/checklist/gate
func (h *OrderHandler) Gate(c *gin.Context) {
	gate, err := h.checklist.Gate(withUser(c), c.Param("orderId"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gate)
}

// Finish 结束服务，检查单未完成时返回 409
// POST /api/v1/orders/:orderId/finish
func (h *OrderHandler) Finish(c *gin.Context) {
	order, err := h.orders.FinishService(withUser(c), c.Param("orderId"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}
