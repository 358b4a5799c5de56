package ddb

import (
	"context"
	"errors"
	"scootspot/internal/types"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// LocationStore implements ports.LocationStore on a DynamoDB table with location_id as hash key.
type LocationStore struct {
	table string
	cli   *dynamodb.Client
	now   func() time.Time
}

func NewLocationStore(table string, cli *dynamodb.Client) *LocationStore {
	return &LocationStore{table: table, cli: cli, now: time.Now}
}

// EnsureTable creates the table if it doesn't exist yet.
func (s *LocationStore) EnsureTable(ctx context.Context) error {
	return createTableIfNotExists(ctx, s.cli, s.table)
}

func (s *LocationStore) Get(ctx context.Context, locationID string) (types.Location, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		Key:            locationKey(locationID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return types.Location{}, types.Err(types.ErrStore, err, "get location %s", locationID)
	}
	if out.Item == nil {
		return types.Location{}, types.ErrNotFound
	}
	var loc types.Location
	if err := attributevalue.UnmarshalMap(out.Item, &loc); err != nil {
		return types.Location{}, types.Err(types.ErrStore, err, "decode location %s", locationID)
	}
	return loc, nil
}

// Scan reads the whole table, following LastEvaluatedKey across pages.
func (s *LocationStore) Scan(ctx context.Context) ([]types.Location, error) {
	p := dynamodb.NewScanPaginator(s.cli, &dynamodb.ScanInput{
		TableName: &s.table,
	})
	locations := make([]types.Location, 0)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, types.Err(types.ErrStore, err, "scan %s", s.table)
		}
		var batch []types.Location
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, types.Err(types.ErrStore, err, "decode scan page")
		}
		locations = append(locations, batch...)
	}
	return locations, nil
}

func (s *LocationStore) Put(ctx context.Context, loc types.Location) error {
	return s.put(ctx, loc, nil)
}

func (s *LocationStore) PutIfAbsent(ctx context.Context, loc types.Location) error {
	err := s.put(ctx, loc, awsString("attribute_not_exists(#id)"))
	var cc *ddbTypes.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return types.ErrAlreadyExists
	}
	return err
}

func (s *LocationStore) put(ctx context.Context, loc types.Location, condition *string) error {
	loc.LastUpdated = types.Timestamp(s.now())
	item, err := attributevalue.MarshalMap(loc)
	if err != nil {
		return types.Err(types.ErrStore, err, "encode location %s", loc.LocationID)
	}
	in := &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      item,
	}
	if condition != nil {
		in.ConditionExpression = condition
		in.ExpressionAttributeNames = map[string]string{"#id": attrLocationID}
	}
	_, err = s.cli.PutItem(ctx, in)
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return cc
		}
		return types.Err(types.ErrStore, err, "put location %s", loc.LocationID)
	}
	return nil
}

func (s *LocationStore) UpdateCount(ctx context.Context, locationID string, count int) (types.Location, error) {
	return s.setInt(ctx, locationID, attrCount, count)
}

func (s *LocationStore) UpdateTotalSpots(ctx context.Context, locationID string, totalSpots int) (types.Location, error) {
	return s.setInt(ctx, locationID, attrTotalSpots, totalSpots)
}

// setInt overwrites one numeric attribute and stamps last_updated. The attribute_exists
// condition keeps the update from materializing a partial row for an unknown id.
func (s *LocationStore) setInt(ctx context.Context, locationID, attr string, v int) (types.Location, error) {
	out, err := s.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &s.table,
		Key:                 locationKey(locationID),
		UpdateExpression:    awsString("SET #v = :v, #lu = :lu"),
		ConditionExpression: awsString("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#v":  attr,
			"#lu": attrLastUpdated,
			"#id": attrLocationID,
		},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":v":  &ddbTypes.AttributeValueMemberN{Value: strconv.Itoa(v)},
			":lu": &ddbTypes.AttributeValueMemberS{Value: types.Timestamp(s.now())},
		},
		ReturnValues: ddbTypes.ReturnValueAllNew,
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return types.Location{}, types.ErrNotFound
		}
		return types.Location{}, types.Err(types.ErrStore, err, "update %s of location %s", attr, locationID)
	}
	var loc types.Location
	if err := attributevalue.UnmarshalMap(out.Attributes, &loc); err != nil {
		return types.Location{}, types.Err(types.ErrStore, err, "decode location %s", locationID)
	}
	return loc, nil
}

// ClearAll drops and recreates the table. Used in tests only.
func (s *LocationStore) ClearAll(ctx context.Context) error {
	if err := dropTable(ctx, s.cli, s.table); err != nil {
		return err
	}
	return createTableIfNotExists(ctx, s.cli, s.table)
}

func locationKey(locationID string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		attrLocationID: &ddbTypes.AttributeValueMemberS{Value: locationID},
	}
}
