package services

import "errors"

var (
	// ErrInvalidPeriod 期间参数非法（格式错误或起止颠倒）
	ErrInvalidPeriod = errors.New("期间参数非法")

	// ErrNotFound 指定的用户、群组或报告不存在
	ErrNotFound = errors.New("数据不存在")

	// ErrGenerationFailed 报告生成失败，事务已回滚，错误链中携带原始原因
	ErrGenerationFailed = errors.New("月度报告生成失败")
)
