package service

import (
	"time"

	"auth-code-system/internal/model"
)

// 时长卡换算表。月/季/年按固定天数折算（30/90/365天），不按日历月，
// 保证计费结果与激活日期无关。permanent 统一落为起始时间加100年，
// 过期判断逻辑不需要对空过期时间做特判。
const (
	daysPerMonth   = 30
	daysPerQuarter = 90
	daysPerYear    = 365
	permanentYears = 100
)

// durationFor 把 (卡类型, 数量) 换算为时长。permanent 不经此函数。
func durationFor(cardType string, amount int) (time.Duration, *Error) {
	base := time.Duration(amount)
	switch cardType {
	case model.CardTypeMinute:
		return base * time.Minute, nil
	case model.CardTypeHour:
		return base * time.Hour, nil
	case model.CardTypeDay:
		return base * 24 * time.Hour, nil
	case model.CardTypeWeek:
		return base * 7 * 24 * time.Hour, nil
	case model.CardTypeMonth:
		return base * daysPerMonth * 24 * time.Hour, nil
	case model.CardTypeQuarter:
		return base * daysPerQuarter * 24 * time.Hour, nil
	case model.CardTypeYear:
		return base * daysPerYear * 24 * time.Hour, nil
	}
	return 0, invalidInput(ReasonBadTimeUnit, "无效的卡类型: "+cardType)
}

// expireFrom 由起始时间计算过期时间
func expireFrom(start time.Time, cardType string, amount int) (time.Time, *Error) {
	if cardType == model.CardTypePermanent {
		return start.AddDate(permanentYears, 0, 0), nil
	}
	d, err := durationFor(cardType, amount)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(d), nil
}
