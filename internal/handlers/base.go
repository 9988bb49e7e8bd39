package handlers

import (
	"strconv"
	"time"

	"keyopolls/internal/middleware"
	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"github.com/gin-gonic/gin"
)

// Fail writes err as {"error": {...}}. Internal errors never leak their message;
// not-found and forbidden never carry details.
func Fail(c *gin.Context, err error) {
	appErr := utils.AsAppError(err)
	_ = c.Error(err)

	if appErr.Kind == utils.KindInternal {
		c.AbortWithStatusJSON(appErr.Code, gin.H{"error": utils.Internal("Something went wrong")})
		return
	}
	resp := *appErr
	if resp.Kind == utils.KindNotFound || resp.Kind == utils.KindForbidden {
		resp.Details = ""
	}
	c.AbortWithStatusJSON(resp.Code, gin.H{"error": &resp})
}

// bind 解析 JSON 请求体，失败时已写好响应
func bind(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		Fail(c, utils.NewError(utils.KindValidation, "Invalid request body", err.Error()))
		return false
	}
	return true
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := utils.ParseID(c.Param(name))
	if err != nil {
		Fail(c, err)
		return 0, false
	}
	return id, true
}

// contentRef 解析 /:kind/:id
func contentRef(c *gin.Context) (models.ContentRef, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		Fail(c, utils.Validationf("invalid id %q", c.Param("id")))
		return models.ContentRef{}, false
	}
	ref, err := models.ParseContentRef(c.Param("kind"), uint(id))
	if err != nil {
		Fail(c, utils.Validation(err.Error()))
		return models.ContentRef{}, false
	}
	return ref, true
}

func queryInt(c *gin.Context, key string, def int) int {
	return utils.StringToInt(c.Query(key), def)
}

// queryUint 缺省或负数都当作 0，即不过滤
func queryUint(c *gin.Context, key string) uint {
	n := queryInt(c, key, 0)
	if n < 0 {
		return 0
	}
	return uint(n)
}

func currentProfile(c *gin.Context) *models.Profile {
	return middleware.CurrentProfile(c)
}

// clock 测试里替换
type clock func() time.Time
