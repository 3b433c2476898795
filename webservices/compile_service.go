package webservices

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/hotosm/osm-rawdata/queryconfig"
	"github.com/hotosm/osm-rawdata/queryrender"
	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
)

// CompileService compiles configs into SQL statements or remote query documents, without running them
type CompileService struct {
	logger         *logpkg.Logger
	compiler       *queryconfig.Compiler
	sqlRenderer    *queryrender.SQLRenderer
	remoteRenderer *queryrender.RemoteRenderer
	chi.Router
}

func NewCompileService(logger *logpkg.Logger, compiler *queryconfig.Compiler) *CompileService {
	router := chi.NewRouter()
	service := &CompileService{logger, compiler, queryrender.NewSQLRenderer(), queryrender.NewRemoteRenderer(), router}

	router.Post("/sql", service.handlePostSQL)
	router.Post("/remote", service.handlePostRemote)
	return service
}

type statementType struct {
	Table rawdata.GeometryClass `json:"table"`
	SQL   string                `json:"sql"`
}

type compileSQLResponseType struct {
	Statements []statementType `json:"statements"`
	// Errors are the tables that couldn't be rendered
	Errors []string `json:"errors"`
}

func (s *CompileService) handlePostSQL(w http.ResponseWriter, r *http.Request) {
	defer startSpan(r.Context(), "compile SQL")()

	model, err := readModel(s.compiler, w, r)
	if err != nil {
		errorsx.HTTPError(w, s.logger, errorsx.Wrap(err), compileErrorStatus(err))
		return
	}

	includeFullGeometry, err := readBoolParam(r, "includeFullGeometry")
	if err != nil {
		errorsx.HTTPError(w, s.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	statements, renderErr := s.sqlRenderer.Render(model, includeFullGeometry)
	if renderErr != nil && len(statements) == 0 {
		errorsx.HTTPError(w, s.logger, errorsx.Wrap(renderErr), http.StatusUnprocessableEntity)
		return
	}

	response := compileSQLResponseType{
		Statements: []statementType{},
		Errors:     []string{},
	}
	for _, statement := range statements {
		response.Statements = append(response.Statements, statementType{statement.Table, statement.SQL})
	}
	if renderErr != nil {
		s.logger.Warn("compiled SQL with errors: %s", renderErr)
		renderErrs, ok := errorsx.Cause(renderErr).(rawdata.RenderErrors)
		if ok {
			for _, tableErr := range renderErrs {
				response.Errors = append(response.Errors, tableErr.Error())
			}
		} else {
			response.Errors = append(response.Errors, renderErr.Error())
		}
	}

	render.JSON(w, r, response)
}

func (s *CompileService) handlePostRemote(w http.ResponseWriter, r *http.Request) {
	defer startSpan(r.Context(), "compile remote query")()

	model, err := readModel(s.compiler, w, r)
	if err != nil {
		errorsx.HTTPError(w, s.logger, errorsx.Wrap(err), compileErrorStatus(err))
		return
	}

	boundary, err := readBoundary(r)
	if err != nil {
		errorsx.HTTPError(w, s.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	query, err := s.remoteRenderer.Render(model, boundary, nil)
	if err != nil {
		errorsx.HTTPError(w, s.logger, errorsx.Wrap(err), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, writeErr := w.Write([]byte(query))
	if writeErr != nil {
		s.logger.Warn("writing remote query: %s", writeErr)
	}
}
