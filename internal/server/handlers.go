package server

import (
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"valuation/internal/appraisal"
	"valuation/internal/comps"
	"valuation/internal/idw"
	"valuation/internal/types"
)

// recordJSON accepts null or absent coordinates as missing.
type recordJSON struct {
	Identifier string   `json:"identifier"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	TotalArea  float64  `json:"total_area"`
	Price      float64  `json:"price"`
	UnitPrice  float64  `json:"unit_price"`
	Zone       string   `json:"zone"`
}

func (r recordJSON) record() types.Record {
	rec := types.Record{
		Identifier: r.Identifier,
		Latitude:   math.NaN(),
		Longitude:  math.NaN(),
		TotalArea:  r.TotalArea,
		Price:      r.Price,
		UnitPrice:  r.UnitPrice,
		Zone:       r.Zone,
	}
	if r.Latitude != nil {
		rec.Latitude = *r.Latitude
	}
	if r.Longitude != nil {
		rec.Longitude = *r.Longitude
	}
	return rec
}

func records(in []recordJSON) []types.Record {
	out := make([]types.Record, len(in))
	for i, r := range in {
		out[i] = r.record()
	}
	return out
}

type comparablesRequest struct {
	Target        recordJSON   `json:"target"`
	Records       []recordJSON `json:"records"`
	MaxDistanceKm float64      `json:"max_distance_km"`
	MinArea       float64      `json:"min_area"`
	MaxArea       float64      `json:"max_area"`
}

func (s *Server) comparables(c *gin.Context) {
	var req comparablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	set, err := comps.Filter(req.Target.record(), records(req.Records), comps.Criteria{
		MaxDistanceKm: req.MaxDistanceKm,
		MinArea:       req.MinArea,
		MaxArea:       req.MaxArea,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comparables": set, "count": len(set)})
}

type idwRequest struct {
	Target      recordJSON   `json:"target"`
	Comparables []recordJSON `json:"comparables"`
	Power       *float64     `json:"power"`
}

func (s *Server) idw(c *gin.Context) {
	var req idwRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	power := idw.DefaultPower
	if req.Power != nil {
		power = *req.Power
	}

	set := make(comps.Set, len(req.Comparables))
	for i, r := range req.Comparables {
		set[i] = comps.Comparable{Record: r.record()}
	}

	res, err := idw.Compute(req.Target.record(), set, power)
	if err != nil {
		s.fail(c, err)
		return
	}
	body := gin.H{"result": res}
	if err := res.Err(); err != nil {
		body["message"] = insufficientMessage(err)
	}
	c.JSON(http.StatusOK, body)
}

type paramsJSON struct {
	MaxDistanceKm *float64 `json:"max_distance_km"`
	AreaTolerance *float64 `json:"area_tolerance"`
	MinArea       *float64 `json:"min_area"`
	MaxArea       *float64 `json:"max_area"`
	Power         *float64 `json:"power"`
}

type evaluateRequest struct {
	Target  recordJSON   `json:"target"`
	Records []recordJSON `json:"records"`
	Params  paramsJSON   `json:"params"`
}

// evaluateQuery holds optional parameter overrides; unset values fall back
// to the configured defaults.
type evaluateQuery struct {
	MaxDistanceKm *float64 `form:"max_distance_km"`
	AreaTolerance *float64 `form:"area_tolerance"`
	MinArea       *float64 `form:"min_area"`
	MaxArea       *float64 `form:"max_area"`
	Power         *float64 `form:"power"`
}

func (s *Server) evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	target := req.Target.record()
	p := s.params(target, evaluateQuery(req.Params))
	s.run(c, target, records(req.Records), p)
}

func (s *Server) evaluateDataset(c *gin.Context) {
	if s.dataset == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no dataset loaded"})
		return
	}

	var q evaluateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query", "details": err.Error()})
		return
	}

	p := s.params(s.dataset.Target, q)
	s.run(c, s.dataset.Target, s.dataset.Records, p)
}

func (s *Server) run(c *gin.Context, target types.Record, candidates []types.Record, p appraisal.Params) {
	run, err := s.evaluator.Evaluate(c.Request.Context(), target, candidates, p)
	if err != nil {
		s.fail(c, err)
		return
	}

	body := gin.H{
		"run_id":            run.ID,
		"cached":            run.Cached,
		"insufficient_data": run.Evaluation.Result.InsufficientData,
		"evaluation":        run.Evaluation,
	}
	if err := run.Evaluation.Result.Err(); err != nil {
		body["message"] = insufficientMessage(err)
	}
	c.JSON(http.StatusOK, body)
}

func insufficientMessage(err error) string {
	return fmt.Sprintf("needs at least %d valid comparables: %v", idw.MinComparables, err)
}
