package webservices

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/hotosm/osm-rawdata/rawdata"
	"github.com/hotosm/osm-rawdata/rawdatadal"
	"github.com/jamesrr39/goutil/logpkg"
)

func NewInfoService(logger *logpkg.Logger, sourceURI rawdatadal.SourceURI) *InfoService {
	ws := &InfoService{logger, sourceURI, chi.NewRouter()}
	ws.Get("/", ws.handleGet)

	return ws
}

type InfoService struct {
	logger    *logpkg.Logger
	sourceURI rawdatadal.SourceURI
	chi.Router
}

type geometryClassType struct {
	Name         rawdata.GeometryClass      `json:"name"`
	RemoteName   rawdata.RemoteGeometryType `json:"remoteName"`
	OSMType      string                     `json:"osmType"`
	BoundaryView string                     `json:"boundaryView"`
}

type infoType struct {
	// SourceType never includes the connection path
	SourceType      rawdatadal.SourceType `json:"sourceType"`
	GeometryClasses []geometryClassType   `json:"geometryClasses"`
	ConfigFormats   []configFormat        `json:"configFormats"`
}

func (ws *InfoService) handleGet(w http.ResponseWriter, r *http.Request) {
	geometryClasses := []geometryClassType{}
	for _, gc := range rawdata.AllGeometryClasses {
		geometryClasses = append(geometryClasses, geometryClassType{
			Name:         gc,
			RemoteName:   gc.RemoteGeometryType(),
			OSMType:      string(gc.OSMType()),
			BoundaryView: gc.ViewName(),
		})
	}

	render.JSON(w, r, infoType{
		SourceType:      ws.sourceURI.Type,
		GeometryClasses: geometryClasses,
		ConfigFormats:   []configFormat{configFormatYAML, configFormatJSON},
	})
}
