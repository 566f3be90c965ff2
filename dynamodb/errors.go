package dynamodb

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// isConditionFailed reports whether err is a failed condition expression,
// either on a single-item write or inside a cancelled transaction.
func isConditionFailed(err error) bool {
	var conditionErr *dynamodbtypes.ConditionalCheckFailedException
	if errors.As(err, &conditionErr) {
		return true
	}

	var cancelledErr *dynamodbtypes.TransactionCanceledException
	if errors.As(err, &cancelledErr) {
		for _, reason := range cancelledErr.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
	}

	return false
}
