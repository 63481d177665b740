package services

import (
	"errors"
	"fmt"

	"prizedraw/internal/models"
)

var (
	ErrPrizeNotFound    = errors.New("指定的獎項不存在")
	ErrPrizeHasWinners  = errors.New("該獎項已有中獎紀錄，無法刪除")
	ErrSessionBusy      = errors.New("抽獎進行中，請稍後再試")
	ErrInvalidSettings  = errors.New("設定內容不正確")
	ErrPersonNotFound   = errors.New("找不到該人員")
	ErrDuplicatePerson  = errors.New("名單中有重複的人員編號")
	ErrNoPrizesToSelect = errors.New("尚未設定任何獎項")
	ErrInvalidImport    = errors.New("名單格式不正確")
	ErrAlreadyWon       = errors.New("該人員已中獎，無法添加到指定名單")
)

// QuotaExhaustedError is returned when a tier has already been fully awarded.
type QuotaExhaustedError struct {
	PrizeID   int
	PrizeName string
	Count     int
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("%s已抽取完畢，請選擇其他獎項", e.PrizeName)
}

// InsufficientPoolError is returned when the eligible pool cannot fill a draw.
type InsufficientPoolError struct {
	PrizeID   int
	Need      int
	Available int
}

func (e *InsufficientPoolError) Error() string {
	return fmt.Sprintf("可用人數不足，需要 %d 人，可用 %d 人", e.Need, e.Available)
}

// ConstraintConflictError is returned when a person would end up on both the
// designated list and the blacklist.
type ConstraintConflictError struct {
	PersonID models.PersonID
	// Existing names the list the person is already on.
	Existing string
}

func (e *ConstraintConflictError) Error() string {
	if e.Existing == ListBlacklist {
		return "該人員已在黑名單中，無法添加到指定名單"
	}
	return "該人員已在指定名單中，無法添加到黑名單"
}

// DuplicateConstraintError is returned when a person is already on the target
// list, or on another tier's designated list.
type DuplicateConstraintError struct {
	PersonID models.PersonID
	List     string
	// PrizeID is the tier whose designated list already holds the person; zero for the blacklist.
	PrizeID int
}

func (e *DuplicateConstraintError) Error() string {
	if e.List == ListBlacklist {
		return "該人員已在黑名單中"
	}
	return fmt.Sprintf("該人員已在獎項 %d 的指定名單中", e.PrizeID)
}

// PersistenceWriteError reports a failed durable write. In-memory state has
// already been updated and stays authoritative.
type PersistenceWriteError struct {
	Key string
	Err error
}

func (e *PersistenceWriteError) Error() string {
	return fmt.Sprintf("資料儲存失敗 (%s): %v", e.Key, e.Err)
}

func (e *PersistenceWriteError) Unwrap() error { return e.Err }

// Names of the constraint lists used in errors.
const (
	ListDesignated = "designated"
	ListBlacklist  = "blacklist"
)
