package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory S3API. Continuation tokens are offsets into the
// sorted key list.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte

	// nilKeys adds that many key-less entries to the first listing page.
	nilKeys int
	// failPage makes the listing call with this 1-based index fail.
	failPage int
	failErr  error
	getErr   error

	listCalls   int
	maxKeysSeen []int32
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++
	f.maxKeysSeen = append(f.maxKeysSeen, aws.ToInt32(in.MaxKeys))
	if f.failPage > 0 && f.listCalls == f.failPage {
		return nil, f.failErr
	}

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	limit := int(aws.ToInt32(in.MaxKeys))
	if limit <= 0 {
		limit = 1000
	}
	end := min(start+limit, len(keys))

	out := &s3.ListObjectsV2Output{}
	if start == 0 {
		for i := 0; i < f.nilKeys; i++ {
			out.Contents = append(out.Contents, s3types.Object{Size: aws.Int64(1)})
		}
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	} else {
		out.IsTruncated = aws.Bool(false)
	}
	return out, nil
}

// fakeDynamo is an in-memory DynamoAPI keyed on the "key" attribute.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]ddbtypes.AttributeValue

	scanCalls int
	failScan  int
	failErr   error

	// emptyMisses answers a missing key with an empty item map instead of nil.
	emptyMisses bool
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]ddbtypes.AttributeValue{}}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := in.Key["key"].(*ddbtypes.AttributeValueMemberS).Value
	item, ok := f.items[k]
	if !ok && f.emptyMisses {
		item = map[string]ddbtypes.AttributeValue{}
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := in.Item["key"].(*ddbtypes.AttributeValueMemberS).Value
	f.items[k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

// put stores a raw item, allowing items that lack the key attribute.
func (f *fakeDynamo) put(id string, item map[string]ddbtypes.AttributeValue) {
	f.mu.Lock()
	f.items[id] = item
	f.mu.Unlock()
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scanCalls++
	if f.failScan > 0 && f.scanCalls == f.failScan {
		return nil, f.failErr
	}

	ids := make([]string, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if in.ExclusiveStartKey != nil {
		last := in.ExclusiveStartKey["id"].(*ddbtypes.AttributeValueMemberS).Value
		start = sort.SearchStrings(ids, last) + 1
	}
	limit := int(aws.ToInt32(in.Limit))
	end := min(start+limit, len(ids))

	prefix := ""
	if p, ok := in.ExpressionAttributeValues[":p"].(*ddbtypes.AttributeValueMemberS); ok {
		prefix = p.Value
	}

	out := &dynamodb.ScanOutput{}
	for _, id := range ids[start:end] {
		item := f.items[id]
		k, hasKey := item["key"].(*ddbtypes.AttributeValueMemberS)
		if hasKey && !strings.HasPrefix(k.Value, prefix) {
			continue
		}
		projected := map[string]ddbtypes.AttributeValue{}
		if hasKey {
			projected["key"] = k
		}
		out.Items = append(out.Items, projected)
	}
	if end < len(ids) {
		out.LastEvaluatedKey = map[string]ddbtypes.AttributeValue{
			"id": &ddbtypes.AttributeValueMemberS{Value: ids[end-1]},
		}
	}
	return out, nil
}
