package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDetect_ZeroPreviousWithCurrent 前期为0且当期大于0时固定记为+100%
func TestDetect_ZeroPreviousWithCurrent(t *testing.T) {
	service := NewChangeService(DefaultChangeThreshold)

	changes := service.Detect(
		map[string]int{"u1": 5},
		map[string]int{},
		map[string]string{"u1": "小明"},
	)

	require.Len(t, changes, 1)
	assert.Equal(t, ChangeTypeIncrease, changes[0].Type)
	assert.Equal(t, 100, changes[0].ChangePercentage)
	assert.Equal(t, 5, changes[0].Current)
	assert.Equal(t, 0, changes[0].Previous)
}

// TestDetect_BothZero 前后均为0不产生记录
func TestDetect_BothZero(t *testing.T) {
	service := NewChangeService(DefaultChangeThreshold)

	changes := service.Detect(
		map[string]int{"u1": 0},
		map[string]int{"u1": 0},
		map[string]string{"u1": "小明"},
	)

	assert.Empty(t, changes)
}

// TestDetect_ThresholdBoundary 阈值比较为含等于，且先取整后比较
func TestDetect_ThresholdBoundary(t *testing.T) {
	service := NewChangeService(DefaultChangeThreshold)

	// 10→13 = +30%，恰好达到阈值
	changes := service.Detect(
		map[string]int{"u1": 13},
		map[string]int{"u1": 10},
		map[string]string{"u1": "小明"},
	)
	require.Len(t, changes, 1)
	assert.Equal(t, 30, changes[0].ChangePercentage)
	assert.Equal(t, ChangeTypeIncrease, changes[0].Type)

	// 10→12 = +20%，低于阈值
	changes = service.Detect(
		map[string]int{"u1": 12},
		map[string]int{"u1": 10},
		map[string]string{"u1": "小明"},
	)
	assert.Empty(t, changes)
}

// TestDetect_RoundBeforeCompare 四舍五入发生在阈值比较之前
func TestDetect_RoundBeforeCompare(t *testing.T) {
	service := NewChangeService(DefaultChangeThreshold)

	// 27→35 = +29.63% → 取整为30 → 达到阈值
	changes := service.Detect(
		map[string]int{"u1": 35},
		map[string]int{"u1": 27},
		map[string]string{"u1": "小明"},
	)
	require.Len(t, changes, 1)
	assert.Equal(t, 30, changes[0].ChangePercentage)

	// 27→34 = +25.93% → 取整为26 → 未达到
	changes = service.Detect(
		map[string]int{"u1": 34},
		map[string]int{"u1": 27},
		map[string]string{"u1": "小明"},
	)
	assert.Empty(t, changes)
}

// TestDetect_Decrease 下降方向
func TestDetect_Decrease(t *testing.T) {
	service := NewChangeService(DefaultChangeThreshold)

	changes := service.Detect(
		map[string]int{"u1": 0},
		map[string]int{"u1": 10},
		map[string]string{"u1": "小明"},
	)

	require.Len(t, changes, 1)
	assert.Equal(t, ChangeTypeDecrease, changes[0].Type)
	assert.Equal(t, -100, changes[0].ChangePercentage)
}

// TestDetect_DeterministicOrder 结果按用户ID升序
func TestDetect_DeterministicOrder(t *testing.T) {
	service := NewChangeService(DefaultChangeThreshold)

	changes := service.Detect(
		map[string]int{"u3": 10, "u1": 10, "u2": 10},
		map[string]int{},
		map[string]string{"u1": "A", "u2": "B", "u3": "C"},
	)

	require.Len(t, changes, 3)
	assert.Equal(t, "u1", changes[0].UserID)
	assert.Equal(t, "u2", changes[1].UserID)
	assert.Equal(t, "u3", changes[2].UserID)
}

// TestDetect_CustomThreshold 自定义阈值
func TestDetect_CustomThreshold(t *testing.T) {
	service := NewChangeService(50)

	changes := service.Detect(
		map[string]int{"u1": 13},
		map[string]int{"u1": 10},
		map[string]string{"u1": "小明"},
	)

	assert.Empty(t, changes)
}
