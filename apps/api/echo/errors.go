package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/horarios/core"
	"github.com/trezcool/horarios/core/schedule"
)

var (
	errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")

	requiredText = "this field is required"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case *core.ValidationError:
			code = http.StatusBadRequest
			if flds := origErr.FieldMap(); flds != nil {
				message = echo.Map{"error": origErr.Error(), "fields": flds}
			} else {
				message = origErr.Error()
			}
		case *schedule.MissingFieldsError:
			flds := make(map[string]string, len(origErr.Fields))
			for _, f := range origErr.Fields {
				flds[f] = requiredText
			}
			code = http.StatusBadRequest
			message = echo.Map{"error": origErr.Error(), "fields": flds}
		case *schedule.InvalidWeekdayError, *schedule.MalformedTimeError,
			*schedule.DurationOutOfRangeError, *schedule.OverlappingModulesError:
			code = http.StatusBadRequest
			message = origErr.Error()
		case *schedule.ReferenceNotFoundError:
			code = http.StatusBadRequest
			message = echo.Map{
				"error":  origErr.Error(),
				"fields": map[string]string{origErr.Reference + "_id": origErr.Error()},
			}
		case *schedule.ConflictError:
			code = http.StatusConflict
			message = echo.Map{"error": origErr.Error(), "conflicts": origErr.Conflicts}
		case *schedule.DataUnavailableError:
			code = http.StatusServiceUnavailable
			message = http.StatusText(code)
			logger.Error(message.(string), err)
		default:
			if origErr == schedule.ErrNotFound {
				code = http.StatusNotFound
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, errors.Wrap(err, msg), map[string]interface{}{
				"request_id": ctx.Response().Header().Get(requestIDHeader),
			})

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
