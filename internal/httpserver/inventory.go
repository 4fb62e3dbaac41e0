package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stockflow/internal/scope"
	"github.com/Skotchmaster/stockflow/internal/search"
	"github.com/Skotchmaster/stockflow/internal/util"
)

type InventoryHTTP struct {
	Engine *scope.Engine
	Search *search.Searcher
}

func pageParams(c echo.Context) ([]scope.Sort, scope.Page) {
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	return scope.ParseSort(c.QueryParam("sort")), scope.NewPage(page, size)
}

func idParam(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

func (h *InventoryHTTP) ListProducts(c echo.Context) error {
	sorts, page := pageParams(c)
	res, err := scope.List(c.Request().Context(), h.Engine, scope.Products, sorts, page)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *InventoryHTTP) GetProduct(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	p, err := scope.Get(c.Request().Context(), h.Engine, scope.Products, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *InventoryHTTP) ListMovements(c echo.Context) error {
	sorts, page := pageParams(c)
	res, err := scope.List(c.Request().Context(), h.Engine, scope.StockMovements, sorts, page)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *InventoryHTTP) ListBranches(c echo.Context) error {
	sorts, page := pageParams(c)
	res, err := scope.List(c.Request().Context(), h.Engine, scope.Branches, sorts, page)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *InventoryHTTP) ListBranchProducts(c echo.Context) error {
	branchID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	sorts, page := pageParams(c)
	res, err := scope.ListInBranch(c.Request().Context(), h.Engine, scope.Products, branchID, sorts, page)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *InventoryHTTP) SearchProducts(c echo.Context) error {
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, size := util.Calculate(page, size)

	res, err := h.Search.Search(c.Request().Context(), c.QueryParam("q"), from, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}
