package abmf

import (
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/free5gc/util/mongoapi"
	"github.com/pkg/errors"

	"github.com/RestComm/charging-server/internal/charging/account"
	"github.com/RestComm/charging-server/internal/logger"
)

const userDataColl = "charging.users"

// MongoEngine is the MongoDB-backed Ledger. Balances live one document per
// subscriber in charging.users. A process-local mutex serializes the
// read-modify-write cycle; cross-process atomicity is out of scope for a
// single-server deployment.
type MongoEngine struct {
	mu     sync.Mutex
	bypass bool
}

func NewMongoEngine(name, url string) (*MongoEngine, error) {
	if err := mongoapi.SetMongoDB(name, url); err != nil {
		return nil, errors.Wrap(err, "connect mongodb")
	}
	return &MongoEngine{}, nil
}

func (e *MongoEngine) SetBypass(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.bypass = on
	logger.AcctLog.Warnf("ledger bypass set to %t", on)
}

func (e *MongoEngine) InitialRequest(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo {
	return e.dispatch(cc, applyInitial)
}

func (e *MongoEngine) UpdateRequest(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo {
	return e.dispatch(cc, applyUpdate)
}

func (e *MongoEngine) TerminateRequest(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo {
	return e.dispatch(cc, applyTerminate)
}

func (e *MongoEngine) EventRequest(cc *account.CreditControlInfo) <-chan *account.CreditControlInfo {
	return e.dispatch(cc, applyEvent)
}

func (e *MongoEngine) dispatch(
	cc *account.CreditControlInfo,
	apply func(cc *account.CreditControlInfo, user *account.UserAccountData) bool,
) <-chan *account.CreditControlInfo {
	ch := make(chan *account.CreditControlInfo, 1)
	go func() {
		e.run(cc, apply)
		ch <- cc
	}()
	return ch
}

func (e *MongoEngine) run(
	cc *account.CreditControlInfo,
	apply func(cc *account.CreditControlInfo, user *account.UserAccountData) bool,
) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.bypass {
		grantAll(cc)
		return
	}
	user, err := fetchUser(cc.SubscriptionId)
	if err != nil {
		cc.SetError(CodeAccountingConnection, err.Error())
		clearReservations(cc)
		logger.AcctLog.Errorf("mongodb read for %s: %+v", cc.SubscriptionId, err)
		return
	}
	if user == nil {
		cc.SetError(CodeInvalidUser, fmt.Sprintf("no account for %s", cc.SubscriptionId))
		clearReservations(cc)
		logger.AcctLog.Warnf("unknown user %s", cc.SubscriptionId)
		return
	}
	if apply(cc, user) {
		if err := storeUser(user); err != nil {
			cc.SetError(CodeAccountingConnection, err.Error())
			clearReservations(cc)
			logger.AcctLog.Errorf("mongodb write for %s: %+v", cc.SubscriptionId, err)
		}
	}
}

func fetchUser(msisdn string) (*account.UserAccountData, error) {
	filter := bson.M{"msisdn": msisdn}
	userData, err := mongoapi.RestfulAPIGetOne(userDataColl, filter)
	if err != nil {
		return nil, err
	}
	if len(userData) == 0 {
		return nil, nil
	}
	return userFromBson(userData), nil
}

func storeUser(user *account.UserAccountData) error {
	filter := bson.M{"msisdn": user.Msisdn}
	putData := bson.M{
		"msisdn":   user.Msisdn,
		"balance":  user.Balance,
		"reserved": user.Reserved,
	}
	_, err := mongoapi.RestfulAPIPutOne(userDataColl, filter, putData)
	return err
}

func userFromBson(doc map[string]interface{}) *account.UserAccountData {
	user := &account.UserAccountData{}
	if v, ok := doc["msisdn"].(string); ok {
		user.Msisdn = v
	}
	user.Balance = bsonInt64(doc["balance"])
	user.Reserved = bsonInt64(doc["reserved"])
	return user
}

// bsonInt64 tolerates the numeric types the driver decodes into.
func bsonInt64(v interface{}) int64 {
	switch value := v.(type) {
	case int:
		return int64(value)
	case int32:
		return int64(value)
	case int64:
		return value
	case float64:
		return int64(value)
	default:
		return 0
	}
}

// UserAdministration over the same collection.

func (e *MongoEngine) ListUsers(filter string) ([]account.UserAccountData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	query := bson.M{}
	if filter != "" {
		query["msisdn"] = bson.M{"$regex": "^" + filter}
	}
	docs, err := mongoapi.RestfulAPIGetMany(userDataColl, query)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	users := make([]account.UserAccountData, 0, len(docs))
	for _, doc := range docs {
		users = append(users, *userFromBson(doc))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Msisdn < users[j].Msisdn })
	return users, nil
}

func (e *MongoEngine) GetUser(msisdn string) (*account.UserAccountData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, err := fetchUser(msisdn)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no account for %s", msisdn)
	}
	return user, nil
}

func (e *MongoEngine) SetBalance(msisdn string, value int64) (*account.UserAccountData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, err := fetchUser(msisdn)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &account.UserAccountData{Msisdn: msisdn}
	}
	user.Balance = value
	if err := storeUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (e *MongoEngine) SetReserved(msisdn string, value int64) (*account.UserAccountData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, err := fetchUser(msisdn)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no account for %s", msisdn)
	}
	user.Reserved = value
	if err := storeUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (e *MongoEngine) Sanitize(msisdn string) (*account.UserAccountData, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, err := fetchUser(msisdn)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no account for %s", msisdn)
	}
	user.Balance += user.Reserved
	user.Reserved = 0
	if err := storeUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (e *MongoEngine) DeleteUser(msisdn string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, err := fetchUser(msisdn)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("no account for %s", msisdn)
	}
	return mongoapi.RestfulAPIDeleteOne(userDataColl, bson.M{"msisdn": msisdn})
}
