// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/gorse-io/shoprec/base/log"
	"github.com/gorse-io/shoprec/config"
	"github.com/gorse-io/shoprec/logics"
	"github.com/gorse-io/shoprec/storage/data"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// RestServer implements a REST-ful API server.
type RestServer struct {
	Config      *config.Config
	DataClient  data.Database
	Recommender *logics.Recommender
	WebService  *restful.WebService
	HttpServer  *http.Server

	weights logics.Weights
}

// NewRestServer creates a REST-ful API server on the data store.
func NewRestServer(cfg *config.Config, database data.Database) (*RestServer, error) {
	recommender, err := logics.NewRecommender(cfg.Recommend, database)
	if err != nil {
		return nil, errors.Trace(err)
	}
	weights, err := logics.NewWeights(cfg.Recommend.Weights)
	if err != nil {
		return nil, errors.Trace(err)
	}
	s := &RestServer{
		Config:      cfg,
		DataClient:  database,
		Recommender: recommender,
		WebService:  new(restful.WebService),
		weights:     weights,
	}
	s.CreateWebService()
	return s, nil
}

// Handler returns the container serving the REST-ful APIs, API docs and metrics.
func (s *RestServer) Handler() *restful.Container {
	container := restful.NewContainer()
	container.Add(s.WebService)
	specConfig := restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
	}
	container.Add(restfulspec.NewOpenAPIService(specConfig))
	container.Handle("/metrics", promhttp.Handler())
	return container
}

// StartHttpServer starts the REST-ful API server. It returns nil after Shutdown.
func (s *RestServer) StartHttpServer() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
	s.HttpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	log.Logger().Info("start http server", zap.String("url", "http://"+addr))
	if err := s.HttpServer.ListenAndServe(); err != http.ErrServerClosed {
		return errors.Trace(err)
	}
	return nil
}

// Shutdown stops the REST-ful API server gracefully.
func (s *RestServer) Shutdown(ctx context.Context) error {
	defer s.Recommender.Close()
	if s.HttpServer == nil {
		return nil
	}
	return s.HttpServer.Shutdown(ctx)
}

// RequestIdFilter tags every response with a request id.
func RequestIdFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	requestId := req.HeaderParameter("X-Request-ID")
	if requestId == "" {
		requestId = uuid.New().String()
	}
	resp.Header().Set("X-Request-ID", requestId)
	chain.ProcessFilter(req, resp)
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)
	RestAPIRequestSecondsVec.WithLabelValues(req.SelectedRoutePath()).Observe(time.Since(start).Seconds())
	if resp.StatusCode() >= http.StatusBadRequest {
		RestAPIErrorsTotalVec.WithLabelValues(strconv.Itoa(resp.StatusCode())).Inc()
	}
	if req.Request.URL.Path != "/api/health" {
		log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
			zap.Int("status_code", resp.StatusCode()),
			zap.Duration("used_time", time.Since(start)))
	}
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(RequestIdFilter)
	ws.Filter(LogFilter)

	ws.Route(ws.GET("/health").To(s.checkHealth).
		Doc("Probe the data store.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Returns(http.StatusOK, "OK", HealthStatus{}).
		Writes(HealthStatus{}))

	/* Interactions with data store */

	ws.Route(ws.POST("/users").To(s.insertUsers).
		Doc("Insert users.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Filter(s.auth).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Reads([]data.User{}).
		Returns(http.StatusOK, "OK", Success{}).
		Writes(Success{}))
	ws.Route(ws.GET("/users").To(s.getUsers).
		Doc("Get users.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Filter(s.auth).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Returns(http.StatusOK, "OK", []data.User{}).
		Writes([]data.User{}))
	ws.Route(ws.POST("/products").To(s.insertProducts).
		Doc("Insert products.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"product"}).
		Filter(s.auth).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Reads([]data.Product{}).
		Returns(http.StatusOK, "OK", Success{}).
		Writes(Success{}))
	ws.Route(ws.GET("/products").To(s.getProducts).
		Doc("Get products.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"product"}).
		Filter(s.auth).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Returns(http.StatusOK, "OK", []data.Product{}).
		Writes([]data.Product{}))
	ws.Route(ws.POST("/interactions").To(s.insertInteractions).
		Doc("Insert interactions.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"interaction"}).
		Filter(s.auth).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Reads([]data.Interaction{}).
		Returns(http.StatusOK, "OK", Success{}).
		Writes(Success{}))
	ws.Route(ws.GET("/user/{user-id}/interactions").To(s.getUserInteractions).
		Doc("Get previous interactions of a user from oldest to latest.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"interaction"}).
		Filter(s.auth).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Returns(http.StatusOK, "OK", []logics.InteractionDetail{}).
		Writes([]logics.InteractionDetail{}))

	/* Recommendation */

	ws.Route(ws.GET("/recommend/{user-id}").To(s.getRecommend).
		Doc("Get recommendation for user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Filter(s.auth).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned products").DataType("integer")).
		Returns(http.StatusOK, "OK", []logics.Recommendation{}).
		Writes([]logics.Recommendation{}))
	ws.Route(ws.GET("/user/{user-id}").To(s.getUserView).
		Doc("Get previous interactions and recommendation for user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Filter(s.auth).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned products").DataType("integer")).
		Returns(http.StatusOK, "OK", UserView{}).
		Writes(UserView{}))
}

type HealthStatus struct {
	Ready          bool   `json:"ready"`
	DataStoreError string `json:"data_store_error,omitempty"`
}

type Success struct {
	RowAffected int
}

// UserView is what a user has done and what the user may like.
type UserView struct {
	UserId               int64                      `json:"user_id"`
	PreviousInteractions []logics.InteractionDetail `json:"previous_interactions"`
	Recommendations      []logics.Recommendation    `json:"recommendations"`
}

// ParseInt parses integers from the query parameter.
func ParseInt(request *restful.Request, name string, fallback int) (value int, err error) {
	valueString := request.QueryParameter(name)
	value, err = strconv.Atoi(valueString)
	if err != nil && valueString == "" {
		value = fallback
		err = nil
	}
	return
}

// ParseUserId parses the user id from the path parameter.
func ParseUserId(request *restful.Request) (int64, error) {
	userId, err := strconv.ParseInt(request.PathParameter("user-id"), 10, 64)
	if err != nil {
		return 0, errors.NotValidf("user id %q", request.PathParameter("user-id"))
	}
	return userId, nil
}

func (s *RestServer) checkHealth(request *restful.Request, response *restful.Response) {
	if err := s.DataClient.Ping(); err != nil {
		log.ResponseLogger(response).Error("failed to ping data store", zap.Error(err))
		response.Header().Set("Access-Control-Allow-Origin", "*")
		if err = response.WriteHeaderAndJson(http.StatusServiceUnavailable, HealthStatus{
			Ready:          false,
			DataStoreError: err.Error(),
		}, restful.MIME_JSON); err != nil {
			log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
		}
		return
	}
	Ok(response, HealthStatus{Ready: true})
}

func (s *RestServer) insertUsers(request *restful.Request, response *restful.Response) {
	var users []data.User
	if err := request.ReadEntity(&users); err != nil {
		BadRequest(response, err)
		return
	}
	if err := s.DataClient.BatchInsertUsers(request.Request.Context(), users); err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, Success{RowAffected: len(users)})
}

func (s *RestServer) getUsers(request *restful.Request, response *restful.Response) {
	users, err := s.DataClient.GetUsers(request.Request.Context())
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, lo.Ternary(users == nil, []data.User{}, users))
}

func (s *RestServer) insertProducts(request *restful.Request, response *restful.Response) {
	var products []data.Product
	if err := request.ReadEntity(&products); err != nil {
		BadRequest(response, err)
		return
	}
	for _, product := range products {
		if product.Price < 0 {
			BadRequest(response, errors.Annotatef(logics.ErrInvalidProduct, "product %d has price %v", product.ProductId, product.Price))
			return
		}
	}
	if err := s.DataClient.BatchInsertProducts(request.Request.Context(), products); err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, Success{RowAffected: len(products)})
}

func (s *RestServer) getProducts(request *restful.Request, response *restful.Response) {
	products, err := s.DataClient.GetProducts(request.Request.Context())
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, lo.Ternary(products == nil, []data.Product{}, products))
}

func (s *RestServer) insertInteractions(request *restful.Request, response *restful.Response) {
	var interactions []data.Interaction
	if err := request.ReadEntity(&interactions); err != nil {
		BadRequest(response, err)
		return
	}
	ctx := request.Request.Context()
	var catalog mapset.Set[int64]
	if s.Config.Recommend.SchemaMismatch == config.SchemaMismatchReject {
		products, err := s.DataClient.GetProducts(ctx)
		if err != nil {
			InternalServerError(response, err)
			return
		}
		catalog = mapset.NewThreadUnsafeSet(lo.Map(products, func(product data.Product, _ int) int64 {
			return product.ProductId
		})...)
	}
	now := time.Now().UTC()
	for i := range interactions {
		if _, err := s.weights.Weight(interactions[i].InteractionType); err != nil {
			BadRequest(response, err)
			return
		}
		// interactions must refer to catalog products
		if catalog != nil && !catalog.Contains(interactions[i].ProductId) {
			BadRequest(response, errors.Annotatef(logics.ErrSchemaMismatch, "product %d is not in catalog", interactions[i].ProductId))
			return
		}
		if interactions[i].Timestamp.IsZero() {
			interactions[i].Timestamp = now
		}
	}
	if err := s.DataClient.BatchInsertInteractions(ctx, interactions); err != nil {
		InternalServerError(response, err)
		return
	}
	InsertedInteractionsTotal.Add(float64(len(interactions)))
	Ok(response, Success{RowAffected: len(interactions)})
}

func (s *RestServer) getUserInteractions(request *restful.Request, response *restful.Response) {
	userId, err := ParseUserId(request)
	if err != nil {
		BadRequest(response, err)
		return
	}
	details, err := s.Recommender.PreviousInteractions(request.Request.Context(), userId)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, details)
}

func (s *RestServer) recommend(request *restful.Request) (int64, []logics.Recommendation, error) {
	userId, err := ParseUserId(request)
	if err != nil {
		return 0, nil, err
	}
	n, err := ParseInt(request, "n", s.Config.Recommend.DefaultN)
	if err != nil {
		return 0, nil, errors.NotValidf("n %q", request.QueryParameter("n"))
	}
	start := time.Now()
	recommendations, err := s.Recommender.Recommend(request.Request.Context(), userId, n)
	if err != nil {
		return userId, nil, errors.Trace(err)
	}
	GetRecommendSeconds.Observe(time.Since(start).Seconds())
	RecommendedProducts.Observe(float64(len(recommendations)))
	return userId, recommendations, nil
}

func (s *RestServer) getRecommend(request *restful.Request, response *restful.Response) {
	_, recommendations, err := s.recommend(request)
	if errors.Is(err, errors.NotValid) {
		BadRequest(response, err)
		return
	} else if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, recommendations)
}

func (s *RestServer) getUserView(request *restful.Request, response *restful.Response) {
	userId, recommendations, err := s.recommend(request)
	if errors.Is(err, errors.NotValid) {
		BadRequest(response, err)
		return
	} else if err != nil {
		InternalServerError(response, err)
		return
	}
	details, err := s.Recommender.PreviousInteractions(request.Request.Context(), userId)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, UserView{
		UserId:               userId,
		PreviousInteractions: details,
		Recommendations:      recommendations,
	})
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content any) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}

func (s *RestServer) auth(request *restful.Request, response *restful.Response, chain *restful.FilterChain) {
	if s.Config.Server.APIKey == "" || request.HeaderParameter("X-API-Key") == s.Config.Server.APIKey {
		chain.ProcessFilter(request, response)
		return
	}
	log.ResponseLogger(response).Error("unauthorized", zap.Bool("missing_api_key", request.HeaderParameter("X-API-Key") == ""))
	if err := response.WriteError(http.StatusUnauthorized, fmt.Errorf("unauthorized")); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}
