package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus_MapsEveryKind(t *testing.T) {
	cases := map[Kind]int{
		KindInputValidation:  http.StatusBadRequest,
		KindUnauthenticated:  http.StatusUnauthorized,
		KindForbidden:        http.StatusForbidden,
		KindNotFound:         http.StatusNotFound,
		KindNotSupported:     http.StatusInternalServerError,
		KindBackendTransient: http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, HTTPStatus(New(kind, "boom")), "kind=%s", kind)
	}
}

func TestHTTPStatus_NonAppErrDefaultsTo500(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestWrap_UnwrapsToCause(t *testing.T) {
	cause := errors.New("network reset")
	err := Wrap(KindBackendTransient, "call failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "network reset")
}
