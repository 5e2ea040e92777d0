package inventory

import (
	"errors"

	"stocktrack-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// httpError maps engine errors onto fiber errors. Storage failures are logged
// and answered with fallback.
func (d Deps) httpError(err error, fallback string) error {
	var (
		ve *stock.ValidationError
		ct *stock.InvalidChangeTypeError
		nf *stock.NotFoundError
		is *stock.InsufficientStockError
		bf *stock.BatchFailedError
	)
	switch {
	case errors.As(err, &ve):
		return fiber.NewError(fiber.StatusBadRequest, ve.Message)
	case errors.As(err, &ct):
		return fiber.NewError(fiber.StatusBadRequest, "Invalid change type")
	case errors.As(err, &nf):
		return fiber.NewError(fiber.StatusNotFound, nf.Error())
	case errors.As(err, &is):
		return fiber.NewError(fiber.StatusBadRequest, is.Error())
	case errors.As(err, &bf):
		return bf
	default:
		d.Log.Error(fallback, zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, fallback)
	}
}

// ErrorHandler renders every error as {"error": message}. Failed batches also
// carry their per-item errors. Anything that is not a fiber or batch error is
// logged and hidden behind a generic 500.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var bf *stock.BatchFailedError
		if errors.As(err, &bf) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":  bf.Error(),
				"errors": bf.Errors,
			})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error": fe.Message,
			})
		}

		log.Error("unexpected error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unexpected server error",
		})
	}
}
