package services

import (
	"math"
	"sort"
)

// DefaultChangeThreshold 默认变化阈值（百分比，含等于）
const DefaultChangeThreshold = 30

const (
	ChangeTypeIncrease = "increase"
	ChangeTypeDecrease = "decrease"
)

// MemberChange 成员任务量的显著变化记录
type MemberChange struct {
	UserID           string `json:"user_id"`
	UserName         string `json:"user_name"`
	Type             string `json:"type"` // increase / decrease
	ChangePercentage int    `json:"change_percentage"`
	Current          int    `json:"current"`
	Previous         int    `json:"previous"`
}

// ChangeService 前后两期任务量变化检测服务
type ChangeService struct {
	threshold int
}

func NewChangeService(threshold int) *ChangeService {
	return &ChangeService{threshold: threshold}
}

// Detect 对比当期与前期的成员任务总量，返回变化幅度达到阈值的记录
// 规则：
//   - 前期为0且当期大于0，固定记为+100%的增长；
//   - 前期与当期均为0，不产生记录；
//   - 其余情况先四舍五入（远离零取整）再与阈值比较，比较为含等于。
//
// 结果按用户ID升序排列，保证输出确定。
func (s *ChangeService) Detect(current, previous map[string]int, names map[string]string) []MemberChange {
	userIDs := unionKeys(current, previous)
	sort.Strings(userIDs)

	changes := []MemberChange{}
	for _, userID := range userIDs {
		cur := current[userID]
		prev := previous[userID]

		var pct int
		switch {
		case prev == 0 && cur > 0:
			pct = 100
		case prev == 0:
			continue
		default:
			pct = int(math.Round(float64(cur-prev) / float64(prev) * 100))
		}

		if abs(pct) < s.threshold {
			continue
		}

		changeType := ChangeTypeIncrease
		if pct < 0 {
			changeType = ChangeTypeDecrease
		}

		changes = append(changes, MemberChange{
			UserID:           userID,
			UserName:         names[userID],
			Type:             changeType,
			ChangePercentage: pct,
			Current:          cur,
			Previous:         prev,
		})
	}

	return changes
}

func unionKeys(maps ...map[string]int) []string {
	seen := make(map[string]bool)
	keys := []string{}
	for _, m := range maps {
		for key := range m {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
