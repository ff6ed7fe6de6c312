package models

import (
	"time"

	"gorm.io/datatypes"
)

const DateLayout = "2006-01-02"

// NewDate 截掉时分秒，统一成 UTC 零点，保证等值查询在各数据库上一致
func NewDate(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func ParseDate(s string) (datatypes.Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return datatypes.Date{}, err
	}
	return NewDate(t), nil
}

func FormatDate(d datatypes.Date) string {
	return time.Time(d).Format(DateLayout)
}

func Today() datatypes.Date { return NewDate(time.Now()) }
