package webservices

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/hotosm/osm-rawdata/queryconfig"
	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/hotosm/osm-rawdata/rawdatadal"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/semaphore"
	"github.com/pkg/profile"
)

const maxConcurrentExtracts = 4

type ExtractService struct {
	logger        *logpkg.Logger
	compiler      *queryconfig.Compiler
	extractor     *rawdatadal.Extractor
	sema          *semaphore.Semaphore
	shouldProfile bool
	chi.Router
}

func NewExtractService(logger *logpkg.Logger, compiler *queryconfig.Compiler, extractor *rawdatadal.Extractor, shouldProfile bool) *ExtractService {
	es := &ExtractService{logger, compiler, extractor, semaphore.NewSemaphore(maxConcurrentExtracts), shouldProfile, chi.NewRouter()}

	es.Post("/", es.handlePost)

	return es
}

type extractDownloadResponseType struct {
	DownloadURL string `json:"downloadUrl"`
}

func (es *ExtractService) handlePost(w http.ResponseWriter, r *http.Request) {
	if es.shouldProfile {
		defer profile.Start().Stop()
	}
	defer startSpan(r.Context(), "extract")()

	model, err := readModel(es.compiler, w, r)
	if err != nil {
		errorsx.HTTPError(w, es.logger, errorsx.Wrap(err), compileErrorStatus(err))
		return
	}

	boundary, err := readBoundary(r)
	if err != nil {
		errorsx.HTTPError(w, es.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	includeFullGeometry, err := readBoolParam(r, "includeFullGeometry")
	if err != nil {
		errorsx.HTTPError(w, es.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	extraParams := make(map[string]interface{})
	if outputType := r.URL.Query().Get("outputType"); outputType != "" {
		extraParams["outputType"] = outputType
	}
	if fileName := r.URL.Query().Get("fileName"); fileName != "" {
		extraParams["fileName"] = fileName
	}

	es.sema.Add()
	defer es.sema.Done()

	result, err := es.extractor.Extract(r.Context(), model, boundary, rawdatadal.ExtractOptions{
		IncludeFullGeometry: includeFullGeometry,
		ExtraParams:         extraParams,
	})
	if err != nil {
		if result == nil || !rawdata.IsRenderError(err) {
			errorsx.HTTPError(w, es.logger, errorsx.Wrap(err), http.StatusInternalServerError)
			return
		}
		es.logger.Warn("extract finished with errors: %s", err)
	}

	if result.Features == nil {
		render.JSON(w, r, extractDownloadResponseType{result.DownloadURL})
		return
	}

	render.JSON(w, r, result.Features)
}
