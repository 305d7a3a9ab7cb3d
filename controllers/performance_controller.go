package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/ktr1133/MyTeacherApp-sub003/config"
	"github.com/ktr1133/MyTeacherApp-sub003/models"
	"github.com/ktr1133/MyTeacherApp-sub003/services"
)

// performanceCacheTTL 实绩数据缓存时间
const performanceCacheTTL = 5 * time.Minute

type PerformanceController struct {
	performance *services.PerformanceService
}

func NewPerformanceController(performance *services.PerformanceService) *PerformanceController {
	return &PerformanceController{performance: performance}
}

// GetPerformance 获取当前用户的实绩图表数据
// period: week/month/year, offset: 0为当前期，负数向过去翻页
func (pc *PerformanceController) GetPerformance(c *gin.Context) {
	uid := c.GetString("uid")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未获取到用户ID"})
		return
	}

	period, offset, ok := parsePeriodQuery(c)
	if !ok {
		return
	}

	cacheKey := fmt.Sprintf("perf:user:%s:%s:%d", uid, period, offset)
	if data, found := readPerformanceCache(c, cacheKey); found {
		c.JSON(http.StatusOK, data)
		return
	}

	var data *services.PerformanceData
	var err error
	switch period {
	case "week":
		data, err = pc.performance.WeeklyWithOffset(uid, offset)
	case "month":
		data, err = pc.performance.MonthlyWithOffset(uid, offset)
	case "year":
		data, err = pc.performance.YearlyWithOffset(uid, offset)
	}
	if err != nil {
		config.Logger.Errorw("实绩数据获取失败", "error", err, "uid", uid, "period", period)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "实绩数据获取失败"})
		return
	}

	writePerformanceCache(c, cacheKey, data)
	c.JSON(http.StatusOK, data)
}

// GetGroupPerformance 获取群组全员合并后的实绩图表数据
func (pc *PerformanceController) GetGroupPerformance(c *gin.Context) {
	group, ok := loadGroupWithMembers(c)
	if !ok {
		return
	}

	period, offset, pok := parsePeriodQuery(c)
	if !pok {
		return
	}

	memberIDs := make([]string, 0, len(group.Members))
	for _, member := range group.Members {
		memberIDs = append(memberIDs, member.ID)
	}
	if len(memberIDs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "群组没有成员"})
		return
	}

	cacheKey := fmt.Sprintf("perf:group:%s:%s:%d", group.ID, period, offset)
	if data, found := readPerformanceCache(c, cacheKey); found {
		c.JSON(http.StatusOK, data)
		return
	}

	var data *services.PerformanceData
	var err error
	switch period {
	case "week":
		data, err = pc.performance.WeeklyForGroupWithOffset(memberIDs, offset)
	case "month":
		data, err = pc.performance.MonthlyForGroupWithOffset(memberIDs, offset)
	case "year":
		data, err = pc.performance.YearlyForGroupWithOffset(memberIDs, offset)
	}
	if err != nil {
		config.Logger.Errorw("群组实绩数据获取失败", "error", err, "groupID", group.ID, "period", period)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "实绩数据获取失败"})
		return
	}

	writePerformanceCache(c, cacheKey, data)
	c.JSON(http.StatusOK, data)
}

func parsePeriodQuery(c *gin.Context) (string, int, bool) {
	period := c.DefaultQuery("period", "week")
	if period != "week" && period != "month" && period != "year" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的期间类型"})
		return "", 0, false
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		var err error
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的偏移量"})
			return "", 0, false
		}
	}

	return period, offset, true
}

func readPerformanceCache(c *gin.Context, key string) (*services.PerformanceData, bool) {
	cached, err := config.RedisClient.Get(c.Request.Context(), key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			config.Logger.Warnw("实绩缓存读取失败", "error", err, "key", key)
		}
		return nil, false
	}

	var data services.PerformanceData
	if err := json.Unmarshal([]byte(cached), &data); err != nil {
		return nil, false
	}
	return &data, true
}

func writePerformanceCache(c *gin.Context, key string, data *services.PerformanceData) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := config.RedisClient.Set(c.Request.Context(), key, payload, performanceCacheTTL).Err(); err != nil {
		config.Logger.Warnw("实绩缓存写入失败", "error", err, "key", key)
	}
}

// loadGroupWithMembers 加载路径参数指定的群组及其成员
func loadGroupWithMembers(c *gin.Context) (*models.Group, bool) {
	groupID := c.Param("groupId")

	var group models.Group
	if err := config.DB.Preload("Members").First(&group, "id = ?", groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "群组不存在"})
		return nil, false
	}
	return &group, true
}
