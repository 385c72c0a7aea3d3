package storage

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"github.com/DrSkyle/bridgestore/pkg/datastore"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// awsCodeKinds classifies AWS error codes shared by S3, DynamoDB and STS.
var awsCodeKinds = map[string]datastore.Kind{
	"NoSuchKey":                 datastore.KindNotFound,
	"NotFound":                  datastore.KindNotFound,
	"NoSuchBucket":              datastore.KindNotFound,
	"ResourceNotFoundException": datastore.KindNotFound,

	"AccessDenied":                datastore.KindUnauthorized,
	"AccessDeniedException":       datastore.KindUnauthorized,
	"AllAccessDisabled":           datastore.KindUnauthorized,
	"InvalidAccessKeyId":          datastore.KindUnauthorized,
	"InvalidClientTokenId":        datastore.KindUnauthorized,
	"SignatureDoesNotMatch":       datastore.KindUnauthorized,
	"InvalidSignatureException":   datastore.KindUnauthorized,
	"ExpiredToken":                datastore.KindUnauthorized,
	"ExpiredTokenException":       datastore.KindUnauthorized,
	"UnrecognizedClientException": datastore.KindUnauthorized,
	"MissingAuthenticationToken":  datastore.KindUnauthorized,

	"InternalError":                          datastore.KindUnreachable,
	"InternalServerError":                    datastore.KindUnreachable,
	"ServiceUnavailable":                     datastore.KindUnreachable,
	"RequestTimeout":                         datastore.KindUnreachable,
	"SlowDown":                               datastore.KindUnreachable,
	"Throttling":                             datastore.KindUnreachable,
	"ThrottlingException":                    datastore.KindUnreachable,
	"ProvisionedThroughputExceededException": datastore.KindUnreachable,
	"RequestLimitExceeded":                   datastore.KindUnreachable,
}

// normalizeAWSError converts an SDK failure into a *datastore.Error,
// keeping the smithy error code.
func normalizeAWSError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return datastore.NewError(datastore.KindUnreachable, "", "request abandoned", err)
	}

	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return datastore.NewError(datastore.KindNotFound, "NoSuchKey", "", err)
	}
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return datastore.NewError(datastore.KindNotFound, "NotFound", "", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		kind, ok := awsCodeKinds[code]
		if !ok {
			kind = kindForStatus(httpStatus(err))
		}
		return datastore.NewError(kind, code, apiErr.ErrorMessage(), err)
	}

	if status := httpStatus(err); status != 0 {
		return datastore.NewError(kindForStatus(status), http.StatusText(status), "", err)
	}

	if isTransportError(err) {
		return datastore.NewError(datastore.KindUnreachable, "", "backend unreachable", err)
	}

	return datastore.NewError(datastore.KindUnknown, "", "", err)
}

func httpStatus(err error) int {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}

func kindForStatus(status int) datastore.Kind {
	switch {
	case status == http.StatusNotFound:
		return datastore.KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return datastore.KindUnauthorized
	case status == http.StatusTooManyRequests || status >= 500:
		return datastore.KindUnreachable
	default:
		return datastore.KindUnknown
	}
}

// isTransportError reports failures that never produced an HTTP response.
func isTransportError(err error) bool {
	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
