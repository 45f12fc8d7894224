package sbi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/free5gc/openapi/models"

	"github.com/RestComm/charging-server/internal/charging/account"
	"github.com/RestComm/charging-server/internal/logger"
)

type userRepr struct {
	Msisdn   string `json:"msisdn"`
	Balance  int64  `json:"balance"`
	Reserved int64  `json:"reserved"`
}

func reprOf(user *account.UserAccountData) userRepr {
	return userRepr{
		Msisdn:   user.Msisdn,
		Balance:  user.Balance,
		Reserved: user.Reserved,
	}
}

func (s *Server) getUserEndpoints() []Route {
	return []Route{
		{"GET", "/users", s.HTTPListUsers},
		{"GET", "/users/:msisdn", s.HTTPGetUser},
		{"PUT", "/users/:msisdn/balance/:value", s.HTTPSetBalance},
		{"POST", "/users/:msisdn/balance/:value", s.HTTPSetBalance},
		{"POST", "/users/:msisdn/reserved/:value", s.HTTPSetReserved},
		{"POST", "/users/:msisdn/sanitize", s.HTTPSanitizeUser},
		{"DELETE", "/users/:msisdn", s.HTTPDeleteUser},
	}
}

func problem(c *gin.Context, status int, detail string) {
	c.JSON(status, models.ProblemDetails{
		Status: int32(status),
		Detail: detail,
	})
}

func (s *Server) HTTPListUsers(c *gin.Context) {
	filter := c.Query("filter")
	users, err := s.users.ListUsers(filter)
	if err != nil {
		logger.SBILog.Errorf("list users: %+v", err)
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	reprs := make([]userRepr, 0, len(users))
	for i := range users {
		reprs = append(reprs, reprOf(&users[i]))
	}
	c.JSON(http.StatusOK, reprs)
}

func (s *Server) HTTPGetUser(c *gin.Context) {
	user, err := s.users.GetUser(c.Param("msisdn"))
	if err != nil {
		problem(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, reprOf(user))
}

func (s *Server) HTTPSetBalance(c *gin.Context) {
	value, err := strconv.ParseInt(c.Param("value"), 10, 64)
	if err != nil {
		problem(c, http.StatusBadRequest, "balance value must be an integer")
		return
	}
	user, err := s.users.SetBalance(c.Param("msisdn"), value)
	if err != nil {
		logger.SBILog.Errorf("set balance: %+v", err)
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, reprOf(user))
}

func (s *Server) HTTPSetReserved(c *gin.Context) {
	value, err := strconv.ParseInt(c.Param("value"), 10, 64)
	if err != nil {
		problem(c, http.StatusBadRequest, "reserved value must be an integer")
		return
	}
	user, err := s.users.SetReserved(c.Param("msisdn"), value)
	if err != nil {
		problem(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, reprOf(user))
}

// HTTPSanitizeUser folds the user's reserved amount back into the balance,
// recovering reservations orphaned by sessions that never terminated.
func (s *Server) HTTPSanitizeUser(c *gin.Context) {
	user, err := s.users.Sanitize(c.Param("msisdn"))
	if err != nil {
		problem(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, reprOf(user))
}

func (s *Server) HTTPDeleteUser(c *gin.Context) {
	if err := s.users.DeleteUser(c.Param("msisdn")); err != nil {
		problem(c, http.StatusNotFound, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}
