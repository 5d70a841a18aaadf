package errprocess

import (
	"errors"
	"fmt"

	"media_pipeline/pkg/logger"

	"go.uber.org/zap"
)

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Wrap log err under op with fields and return it wrapped as "op: err"
func Wrap(op string, err error, fields ...zap.Field) error {
	logger.Log.Error(op, append(fields, zap.Error(err))...)
	return fmt.Errorf("%s: %w", op, err)
}
