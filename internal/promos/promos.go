// Package promos resolves and redeems event promo codes. Redemption is a
// single guarded update so a code's usage limit holds under concurrency.
package promos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bukari-app/bukari-backend/pkg/db/models"
	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
)

// Consume redeems code for the given event inside the caller's transaction.
// On success the returned promo carries the discount percentage to apply.
func Consume(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, code string, now time.Time) (*models.PromoCode, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction handle required")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code required")
	}

	var promo models.PromoCode
	err := tx.WithContext(ctx).
		Where("event_id = ? AND code = ?", eventID, code).
		First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
		}
		return nil, fmt.Errorf("loading promo code: %w", err)
	}

	if !promo.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "promo code is inactive")
	}
	if promo.ExpiresAt != nil && !promo.ExpiresAt.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "promo code has expired")
	}

	// The usage-limit check and the increment are one statement. Two racing
	// purchases cannot both take the last redemption.
	result := tx.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("id = ? AND is_active = ? AND (usage_limit = 0 OR used_count < usage_limit)", promo.ID, true).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return nil, fmt.Errorf("consuming promo code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "promo code usage limit reached")
	}

	promo.UsedCount++
	return &promo, nil
}

// Refund returns one redemption to the code, used when a purchase that
// consumed it fails before completing.
func Refund(ctx context.Context, tx *gorm.DB, promoID uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction handle required")
	}
	if promoID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "promo id required")
	}
	return tx.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("id = ? AND used_count > 0", promoID).
		UpdateColumn("used_count", gorm.Expr("used_count - 1")).Error
}
