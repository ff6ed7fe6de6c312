package db

import (
	"errors"
	"fmt"
	"strings"

	"escrim/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 单行查询没有结果（合法的空结果，不是故障）
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
	// ErrDatabase 用 errors.Is 判断存储层故障
	ErrDatabase = errors.New("database error")

	ErrDuplicatePrescription = errors.New("a prescription already exists for this patient")
	ErrMedicationNotFound    = errors.New("medication batch not found")
	ErrIncidentNotFound      = errors.New("incident not found")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrNegativeQuantity      = errors.New("quantity cannot be negative")
)

var domainErrors = []error{
	ErrNotFound, ErrDuplicate, ErrDuplicatePrescription,
	ErrMedicationNotFound, ErrIncidentNotFound, ErrInvalidQuantity, ErrNegativeQuantity,
}

// DatabaseError wraps a connectivity or statement failure together with the
// repository operation that hit it.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string        { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *DatabaseError) Unwrap() error        { return e.Err }
func (e *DatabaseError) Is(target error) bool { return target == ErrDatabase }

// InsufficientStockError 请求数量超过批次库存；Available 是当时的库存
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d item(s) available, %d requested", e.Available, e.Requested)
}

// classify 把 gorm/驱动错误归类；已经归过类的错误原样返回
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		dbErr    *DatabaseError
		stockErr *InsufficientStockError
		descErr  *models.DescriptorError
	)
	if errors.As(err, &dbErr) || errors.As(err, &stockErr) || errors.As(err, &descErr) {
		return err
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return &DatabaseError{Op: op, Err: err}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// 驱动没开 TranslateError 时按报错文本兜底
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
