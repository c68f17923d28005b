package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/s2-indices/common"
	db "github.com/airbusgeo/s2-indices/interface/database"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/workflow"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Run", func() {
	var (
		request workflow.Request
		res     workflow.Result
		err     error
	)

	BeforeEach(func() {
		server.reset()
		request = workflow.Request{AOI: aoi, DayRange: 10}
	})

	JustBeforeEach(func() {
		res, err = wf.Run(ctx, session, request)
	})

	var itCleansTheWorkingDir = func() {
		It("should clean the working directory", func() {
			entries, err := os.ReadDir(workdir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	}

	Context("when a Level-2A tile is available", func() {
		It("should process the first Level-2A tile", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(common.OutcomeProcessed))
			Expect(res.Tiles).To(HaveLen(1))
			Expect(res.Tiles[0].TileID).To(Equal(common.TileID(tileID)))
			Expect(server.nbDownloads()).To(Equal(1))
		})

		It("should extract the metadata", func() {
			Expect(res.Tiles[0].MetadataErr).NotTo(HaveOccurred())
			Expect(res.Tiles[0].Metadata.Get("Processing_Level")).To(Equal("Level-2A"))
			Expect(res.Tiles[0].Metadata.Get("Cloud_Coverage_Assessment")).To(Equal("12.5"))
			Expect(res.Tiles[0].Metadata).To(HaveKeyWithValue("Ozone_Value", BeNil()))
		})

		It("should render the indices whose bands are available", func() {
			tr := res.Tiles[0]
			Expect(tr.Images).To(HaveLen(1))
			Expect(tr.Images).To(HaveKeyWithValue(common.NDVI, filepath.Join(outdir, common.NDVI.ImageName())))
			Expect(filepath.Join(outdir, common.NDVI.ImageName())).To(BeARegularFile())
			Expect(tr.IndexErrs).To(HaveLen(3))
			Expect(errors.Is(tr.IndexErrs[common.NDWI], service.ErrBandNotFound)).To(BeTrue())
		})

		It("should save the metadata of the session", func() {
			m, err := wf.MetadataBackend().LastMetadata(ctx, session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.TileID).To(Equal(common.TileID(tileID)))
			Expect(m.Images).To(HaveKey(common.NDVI))
			Expect(*m.Metadata["Processing_Level"]).To(Equal("Level-2A"))
		})

		itCleansTheWorkingDir()

		It("should convert the result", func() {
			cres := res.ToCommon("job", err)
			Expect(cres.ID).To(Equal("job"))
			Expect(cres.Message).To(BeEmpty())
			Expect(cres.Tiles).To(HaveLen(1))
			Expect(cres.Tiles[0].IndexErrs[common.NDBI]).To(ContainSubstring("B11"))
		})
	})

	Context("when only Level-1C products match", func() {
		BeforeEach(func() {
			server.set(func(c *cdse) { c.products = l1cProducts })
		})

		It("should not find any tile", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(common.OutcomeNoTilesFound))
			Expect(res.Tiles).To(BeEmpty())
			Expect(server.nbDownloads()).To(Equal(0))
		})
	})

	Context("when the catalog is unavailable", func() {
		BeforeEach(func() {
			server.set(func(c *cdse) { c.catalogStatus = http.StatusBadRequest })
		})

		It("should fail", func() {
			Expect(errors.Is(err, service.ErrCatalogUnavailable)).To(BeTrue())
			Expect(res.Outcome).To(Equal(common.OutcomeFailed))
		})
	})

	Context("when the credentials are wrong", func() {
		JustBeforeEach(func() {
			res, err = wf.Run(ctx, workflow.Session{ID: "bad", Username: "user", Password: "wrong"}, request)
		})

		It("should fail with an authentication error", func() {
			Expect(errors.Is(err, service.ErrAuthFailed)).To(BeTrue())
			Expect(res.Outcome).To(Equal(common.OutcomeFailed))
			Expect(server.nbDownloads()).To(Equal(0))
		})

		itCleansTheWorkingDir()
	})

	Context("when the product cannot be downloaded", func() {
		BeforeEach(func() {
			server.set(func(c *cdse) { c.downloadStatus = http.StatusNotFound })
		})

		It("should fail to download", func() {
			Expect(err).To(HaveOccurred())
			Expect(res.Outcome).To(Equal(common.OutcomeDownloadFailed))
			Expect(res.Tiles).To(BeEmpty())
		})

		itCleansTheWorkingDir()
	})

	Context("when the request is invalid", func() {
		BeforeEach(func() {
			request.DayRange = 0
		})

		It("should fail without querying the catalog", func() {
			Expect(err).To(HaveOccurred())
			Expect(res.Outcome).To(Equal(common.OutcomeFailed))
		})
	})
})

var _ = Describe("Server", func() {
	var handler http.Handler

	BeforeEach(func() {
		server.reset()
		handler = workflow.NewServer(wf).NewHandler()
	})

	var do = func(method, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	var login = func() *http.Cookie {
		rec := do("POST", "/login", url.Values{"username": {"user"}, "password": {"pword"}})
		Expect(rec.Code).To(Equal(http.StatusOK))
		for _, c := range rec.Result().Cookies() {
			if c.Name == workflow.SessionCookie {
				return c
			}
		}
		Fail("missing session cookie")
		return nil
	}

	Describe("login", func() {
		It("should open a session", func() {
			cookie := login()
			Expect(cookie.Value).NotTo(BeEmpty())
			Expect(cookie.HttpOnly).To(BeTrue())
		})

		It("should reject wrong credentials", func() {
			rec := do("POST", "/login", url.Values{"username": {"user"}, "password": {"wrong"}})
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(rec.Result().Cookies()).To(BeEmpty())
		})

		It("should require the credentials", func() {
			rec := do("POST", "/login", url.Values{"username": {"user"}})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("without session", func() {
		It("should be unauthorized", func() {
			for _, path := range []string{"/metadata", "/metadata/Processing_Level", "/ndvi", "/tiles"} {
				Expect(do("GET", path, nil).Code).To(Equal(http.StatusUnauthorized), path)
			}
			Expect(do("POST", "/download_tile", url.Values{"aoi": {aoi}, "day_range": {"10"}}).Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("before any download", func() {
		It("should not find the metadata", func() {
			cookie := login()
			Expect(do("GET", "/metadata", nil, cookie).Code).To(Equal(http.StatusNotFound))
			Expect(do("GET", "/ndvi", nil, cookie).Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("after a download", func() {
		var cookie *http.Cookie

		BeforeEach(func() {
			cookie = login()
			rec := do("POST", "/download_tile", url.Values{"aoi": {aoi}, "day_range": {"10"}, "cloud_cover": {"30"}}, cookie)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var res common.Result
			Expect(json.Unmarshal(rec.Body.Bytes(), &res)).To(Succeed())
			Expect(res.Outcome).To(Equal(common.OutcomeProcessed))
			Expect(res.Tiles).To(HaveLen(1))
			Expect(res.Tiles[0].Images).To(HaveKey(common.NDVI))
		})

		It("should return the metadata", func() {
			rec := do("GET", "/metadata", nil, cookie)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var m map[string]*string
			Expect(json.Unmarshal(rec.Body.Bytes(), &m)).To(Succeed())
			Expect(m).To(HaveKeyWithValue("Ozone_Value", BeNil()))
			Expect(*m["Processing_Level"]).To(Equal("Level-2A"))
		})

		It("should return a field of the metadata", func() {
			rec := do("GET", "/metadata/Cloud_Coverage_Assessment", nil, cookie)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"Cloud_Coverage_Assessment":"12.5"}`))

			rec = do("GET", "/metadata/Ozone_Value", nil, cookie)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"Ozone_Value":null}`))

			Expect(do("GET", "/metadata/Unknown_Field", nil, cookie).Code).To(Equal(http.StatusNotFound))
		})

		It("should send the rendered index", func() {
			rec := do("GET", "/ndvi", nil, cookie)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("image/png"))
			Expect(rec.Header().Get("Content-Disposition")).To(Equal(`attachment; filename="ndvi_map.png"`))
			_, err := png.Decode(rec.Body)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should not send an index that could not be computed", func() {
			Expect(do("GET", "/ndwi", nil, cookie).Code).To(Equal(http.StatusNotFound))
		})

		It("should list the processed tiles", func() {
			rec := do("GET", "/tiles?pattern=*_T31TCJ_*", nil, cookie)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var tiles []db.TileMetadata
			Expect(json.Unmarshal(rec.Body.Bytes(), &tiles)).To(Succeed())
			Expect(tiles).To(HaveLen(1))
			Expect(tiles[0].TileID).To(Equal(common.TileID(tileID)))
		})
	})

	Describe("download errors", func() {
		It("should map the outcome to the status", func() {
			cookie := login()
			form := url.Values{"aoi": {aoi}, "day_range": {"10"}}

			server.set(func(c *cdse) { c.products = l1cProducts })
			Expect(do("POST", "/download_tile", form, cookie).Code).To(Equal(http.StatusNotFound))

			server.set(func(c *cdse) { c.products, c.downloadStatus = l2aProducts, http.StatusNotFound })
			rec := do("POST", "/download_tile", form, cookie)
			Expect(rec.Code).To(Equal(http.StatusBadGateway))
			var res common.Result
			Expect(json.Unmarshal(rec.Body.Bytes(), &res)).To(Succeed())
			Expect(res.Outcome).To(Equal(common.OutcomeDownloadFailed))
			Expect(res.Message).NotTo(BeEmpty())

			Expect(do("POST", "/download_tile", url.Values{"aoi": {aoi}}, cookie).Code).To(Equal(http.StatusBadRequest))
		})
	})
})

// MokePublisher implements workflow.Publisher
type MokePublisher struct {
	messages [][]byte
}

// Publish implements workflow.Publisher
func (p *MokePublisher) Publish(ctx context.Context, data ...[]byte) (err error) {
	p.messages = append(p.messages, data...)
	return nil
}

var _ = Describe("HandleJob", func() {
	var (
		publisher *MokePublisher
		job       string
		err       error
	)

	BeforeEach(func() {
		server.reset()
		publisher = &MokePublisher{}
		job = `{"id":"job-1","aoi":"` + aoi + `","day_range":10,"cloud_cover":30}`
	})

	JustBeforeEach(func() {
		err = wf.HandleJob(ctx, session, []byte(job), publisher)
	})

	var result = func() common.Result {
		Expect(publisher.messages).To(HaveLen(1))
		res := common.Result{}
		Expect(json.Unmarshal(publisher.messages[0], &res)).To(Succeed())
		return res
	}

	It("should publish the result of the job", func() {
		Expect(err).NotTo(HaveOccurred())
		res := result()
		Expect(res.ID).To(Equal("job-1"))
		Expect(res.Outcome).To(Equal(common.OutcomeProcessed))
		Expect(res.Tiles).To(HaveLen(1))
		Expect(res.Tiles[0].Metadata).To(HaveKey("Processing_Level"))
	})

	Context("when the download fails", func() {
		BeforeEach(func() {
			server.set(func(c *cdse) { c.downloadStatus = http.StatusNotFound })
		})

		It("should publish the failure", func() {
			Expect(err).NotTo(HaveOccurred())
			res := result()
			Expect(res.Outcome).To(Equal(common.OutcomeDownloadFailed))
			Expect(res.Message).NotTo(BeEmpty())
		})
	})

	Context("when the download service is temporarily unavailable", func() {
		BeforeEach(func() {
			server.set(func(c *cdse) { c.downloadStatus = http.StatusServiceUnavailable })
		})

		It("should not publish anything", func() {
			Expect(service.Temporary(err)).To(BeTrue())
			Expect(publisher.messages).To(BeEmpty())
		})
	})

	Context("when the payload is invalid", func() {
		BeforeEach(func() {
			job = `{"aoi":"` + aoi + `"}`
		})

		It("should fail", func() {
			Expect(err).To(HaveOccurred())
			Expect(publisher.messages).To(BeEmpty())
		})
	})
})
