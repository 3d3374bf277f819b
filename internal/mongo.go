package internal

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"paygate/config"
	"paygate/entity"
	"paygate/services"
)

const (
	collectionLog                = "payment_log"
	collectionBaskets            = "baskets"
	collectionOrders             = "orders"
	collectionProcessorResponses = "processor_responses"
)

type MongoDB struct {
	ctx              context.Context
	clientOptions    *options.ClientOptions
	database         string
	logRecordsNumber int64
}

func NewMongoClient(conf *config.Config) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		ctx:              context.Background(),
		clientOptions:    clientOptions,
		database:         conf.Mongo.Database,
		logRecordsNumber: conf.LogRecords,
	}
	return client, nil
}

func (m *MongoDB) connect() (*mongo.Client, error) {
	connection, err := mongo.Connect(m.ctx, m.clientOptions)
	if err != nil {
		return nil, err
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	err := connection.Disconnect(m.ctx)
	if err != nil {
		log.Println("mongodb disconnect error", err)
	}
}

func (m *MongoDB) GetBasket(ctx context.Context, id int) (*entity.Basket, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "basket_id", Value: id}}
	collection := connection.Database(m.database).Collection(collectionBaskets)
	var basket entity.Basket
	if err = collection.FindOne(ctx, filter).Decode(&basket); err != nil {
		return nil, err
	}
	return &basket, nil
}

func (m *MongoDB) GetBasketByOrderNumber(ctx context.Context, orderNumber string) (*entity.Basket, error) {
	id, err := entity.BasketIdFromOrderNumber(orderNumber)
	if err != nil {
		return nil, err
	}
	return m.GetBasket(ctx, id)
}

func (m *MongoDB) GetOrder(ctx context.Context, orderNumber string) (*entity.Order, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "order_number", Value: orderNumber}}
	collection := connection.Database(m.database).Collection(collectionOrders)
	var order entity.Order
	if err = collection.FindOne(ctx, filter).Decode(&order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (m *MongoDB) OrderExists(ctx context.Context, orderNumber string) (bool, error) {
	connection, err := m.connect()
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "order_number", Value: orderNumber}}
	collection := connection.Database(m.database).Collection(collectionOrders)
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// PlaceOrder writes the order unless one with the same number is already
// finalized. The finalized guard lives in the update filter itself, and the
// unique order_number index turns the losing side of a concurrent upsert
// into a duplicate-key error, so a redelivered callback cannot double-apply
// a payment even across processes.
func (m *MongoDB) PlaceOrder(ctx context.Context, order *entity.Order) (bool, error) {
	connection, err := m.connect()
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionOrders)

	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "order_number", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return false, err
	}

	filter := bson.D{
		{Key: "order_number", Value: order.OrderNumber},
		{Key: "status", Value: bson.D{{Key: "$nin", Value: bson.A{entity.OrderStatusPaid, entity.OrderStatusFailed}}}},
	}
	_, err = collection.UpdateOne(ctx, filter, bson.M{"$set": order}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *MongoDB) SaveProcessorResponse(ctx context.Context, response *entity.ProcessorResponse) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionProcessorResponses)
	_, err = collection.InsertOne(ctx, response)
	return err
}

func (m *MongoDB) WriteLogMessage(data services.Data) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)
	collection := connection.Database(m.database).Collection(collectionLog)
	_, err = collection.InsertOne(m.ctx, data)
	return err
}
