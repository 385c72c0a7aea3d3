package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/DrSkyle/bridgestore/pkg/datastore"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
)

func responseError(status int) error {
	return &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
		Err:      errors.New("http failure"),
	}
}

func TestNormalizeAWSError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind datastore.Kind
		code string
	}{
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, datastore.KindNotFound, "NoSuchKey"},
		{"no such bucket", &smithy.GenericAPIError{Code: "NoSuchBucket"}, datastore.KindNotFound, "NoSuchBucket"},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, datastore.KindUnauthorized, "AccessDenied"},
		{"bad signature", &smithy.GenericAPIError{Code: "SignatureDoesNotMatch"}, datastore.KindUnauthorized, "SignatureDoesNotMatch"},
		{"dynamo auth", &smithy.GenericAPIError{Code: "UnrecognizedClientException"}, datastore.KindUnauthorized, "UnrecognizedClientException"},
		{"throttled", &smithy.GenericAPIError{Code: "SlowDown"}, datastore.KindUnreachable, "SlowDown"},
		{"unmapped code", &smithy.GenericAPIError{Code: "InvalidObjectState"}, datastore.KindUnknown, "InvalidObjectState"},
		{"status 404", responseError(http.StatusNotFound), datastore.KindNotFound, "Not Found"},
		{"status 403", responseError(http.StatusForbidden), datastore.KindUnauthorized, "Forbidden"},
		{"status 503", responseError(http.StatusServiceUnavailable), datastore.KindUnreachable, "Service Unavailable"},
		{"status 400", responseError(http.StatusBadRequest), datastore.KindUnknown, "Bad Request"},
		{"canceled", fmt.Errorf("op: %w", context.Canceled), datastore.KindUnreachable, ""},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, datastore.KindUnreachable, ""},
		{"send", &smithyhttp.RequestSendError{Err: errors.New("no such host")}, datastore.KindUnreachable, ""},
		{"other", errors.New("boom"), datastore.KindUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := normalizeAWSError(tt.err)
			assert.Equal(t, tt.kind, datastore.KindOf(err))
			assert.Equal(t, tt.code, datastore.CodeOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNormalizeAWSError_Nil(t *testing.T) {
	assert.NoError(t, normalizeAWSError(nil))
}

func TestNormalizeAWSError_ThrottleDetectable(t *testing.T) {
	err := normalizeAWSError(&smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"})
	assert.True(t, datastore.IsThrottled(err))
}
