package ddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

const (
	attrLocationID  = "location_id"
	attrTotalSpots  = "total_spots"
	attrCount       = "count"
	attrLastUpdated = "last_updated"

	tableWaitTimeout = 30 * time.Second
)

// createTableIfNotExists creates the locations table keyed by location_id.
// An existing table is left untouched.
func createTableIfNotExists(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &table,
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: awsString(attrLocationID), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: awsString(attrLocationID), KeyType: ddbTypes.KeyTypeHash},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var re *ddbTypes.ResourceInUseException
	if err != nil {
		if errors.As(err, &re) {
			return nil
		}
		return fmt.Errorf("create table %s: %w", table, err)
	}
	log.WithField("table", table).Info("Created locations table")
	return dynamodb.NewTableExistsWaiter(client).Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	}, tableWaitTimeout)
}

// dropTable deletes the table and waits until it is gone.
func dropTable(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: &table,
	})
	if err != nil {
		var nf *ddbTypes.ResourceNotFoundException
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}
	return dynamodb.NewTableNotExistsWaiter(client).Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	}, tableWaitTimeout)
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
