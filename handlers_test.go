package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/almacen/inventory_backend/middlewares"
	"github.com/almacen/inventory_backend/models"
	"github.com/almacen/inventory_backend/models/reports"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	app    *App
	ready  *middlewares.Readiness
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	_, err = models.MigrateTable(context.Background(), db, nil)
	require.NoError(t, err)
	require.NoError(t, registerValidators())

	log, _ := test.NewNullLogger()
	app := &App{store: models.NewStore(db, models.WithLogger(log)), logger: log}
	ready := &middlewares.Readiness{}
	ready.SetReady(true)
	return &testServer{router: newRouter(app, ready, nil), app: app, ready: ready}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func createBook(t *testing.T, s *testServer, title, code string, price, stock float64) int {
	t.Helper()
	w := s.do(t, http.MethodPost, "/libros", map[string]interface{}{
		"titulo": title, "autor": "Anónimo", "precio": price, "stock": stock, "codigo": code,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int(decode(t, w)["id"].(float64))
}

func TestIndexAndHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body["endpoints"], "/ventas")

	w = s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middlewares.CorrelationHeader))

	s.ready.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/libros", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/", nil).Code)

	s.ready.SetReady(true)
	w = s.do(t, http.MethodGet, "/no-existe", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Ruta no encontrada", decode(t, w)["error"])
}

func TestSaleFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := createBook(t, s, "Pedro Páramo", "LB-100", 5, 100)

	w := s.do(t, http.MethodPost, "/ventas", map[string]interface{}{
		"producto_id": id, "tipo_producto": "libro", "cantidad": 30, "vendedor": "ana",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Venta registrada exitosamente", body["message"])
	assert.EqualValues(t, 150, body["total"])
	assert.EqualValues(t, 70, body["cantidad_restante"])
	assert.Equal(t, "disponible", body["estado"])

	w = s.do(t, http.MethodPost, "/ventas", map[string]interface{}{
		"producto_id": id, "cantidad": 71, "vendedor": "ana",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "Stock insuficiente")

	w = s.do(t, http.MethodPost, "/ventas", map[string]interface{}{
		"producto_id": id, "cantidad": 70, "vendedor": "ana", "precio_total": 350,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "agotado", decode(t, w)["estado"])

	w = s.do(t, http.MethodGet, "/libros/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	product := decode(t, w)
	assert.EqualValues(t, 0, product["cantidad_disponible"])
	assert.Equal(t, "agotado", product["estado"])

	w = s.do(t, http.MethodGet, "/ventas?tipo=libro&producto_id="+itoa(id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	sales := decodeList(t, w)
	require.Len(t, sales, 2)
	assert.Equal(t, "Pedro Páramo", sales[0]["nombre"])

	w = s.do(t, http.MethodGet, "/historial/"+itoa(id)+"?tipo=libro", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decodeList(t, w)
	require.Len(t, history, 3)
	assert.Equal(t, "Venta realizada", history[0]["accion"])

	w = s.do(t, http.MethodGet, "/agotados", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeList(t, w), 1)

	w = s.do(t, http.MethodGet, "/estadisticas/ventas", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.EqualValues(t, 2, stats["total_ventas"])
	assert.EqualValues(t, 500, stats["ingresos_totales"])
}

func TestSaleErrorsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := createBook(t, s, "Aleph", "LB-1", 10, 5)

	tests := []struct {
		name   string
		body   interface{}
		status int
		msg    string
	}{
		{"missing fields", map[string]interface{}{}, http.StatusBadRequest, "Datos incompletos"},
		{"unknown product", map[string]interface{}{"producto_id": 999, "cantidad": 1, "vendedor": "ana"}, http.StatusNotFound, "no encontrado"},
		{"wrong kind", map[string]interface{}{"producto_id": id, "tipo_producto": "cafe", "cantidad": 1, "vendedor": "ana"}, http.StatusNotFound, "no encontrado"},
		{"invalid kind", map[string]interface{}{"producto_id": id, "tipo_producto": "mueble", "cantidad": 1, "vendedor": "ana"}, http.StatusBadRequest, "Datos inválidos"},
		{"tampered total", map[string]interface{}{"producto_id": id, "cantidad": 2, "vendedor": "ana", "precio_total": 1}, http.StatusBadRequest, "precio_total"},
		{"malformed json", `{"producto_id":`, http.StatusBadRequest, "JSON inválido"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/ventas", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, decode(t, w)["error"], tt.msg)
		})
	}

	w := s.do(t, http.MethodGet, "/libros/"+itoa(id), nil)
	assert.EqualValues(t, 5, decode(t, w)["cantidad_disponible"])
}

func TestRollSaleBodyOverHTTP(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/rollos", map[string]interface{}{
		"tipo_tela": "Drill", "color": "Beige", "codigo": "RD-1",
		"cantidad_total": 50, "precio_por_metro": 8, "precio_rollo_completo": 350,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := int(decode(t, w)["id"].(float64))

	w = s.do(t, http.MethodPost, "/ventas", map[string]interface{}{
		"rollo_id": id, "cantidad_vendida": 12.5, "vendedor": "ana",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 100, body["total"])
	assert.EqualValues(t, 37.5, body["cantidad_restante"])

	w = s.do(t, http.MethodPost, "/rollos", map[string]interface{}{"color": "Rojo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "tipo_tela")

	w = s.do(t, http.MethodPost, "/rollos", map[string]interface{}{
		"tipo_tela": "Drill", "color": "Azul", "codigo": "RD-1", "cantidad_total": 5, "precio_por_metro": 8,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "duplicado")
}

func TestConcurrentSalesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := createBook(t, s, "Ficciones", "LB-9", 5, 100)

	var wg sync.WaitGroup
	codes := make(chan int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := s.do(t, http.MethodPost, "/ventas", map[string]interface{}{
				"producto_id": id, "cantidad": 15, "vendedor": "caja",
			})
			codes <- w.Code
		}()
	}
	wg.Wait()
	close(codes)

	ok, rejected := 0, 0
	for code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusBadRequest:
			rejected++
		}
	}
	assert.Equal(t, 6, ok)
	assert.Equal(t, 4, rejected)

	w := s.do(t, http.MethodGet, "/productos/"+itoa(id), nil)
	assert.EqualValues(t, 10, decode(t, w)["cantidad_disponible"])
}

func TestProductCRUDOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := createBook(t, s, "Rayuela", "LB-2", 40, 3)

	w := s.do(t, http.MethodPost, "/cafes", map[string]interface{}{
		"nombre": "Villa Rica", "tipo": "Molido", "origen": "Pasco", "precio": 28, "stock": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	coffeeId := int(decode(t, w)["id"].(float64))

	w = s.do(t, http.MethodGet, "/libros", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeList(t, w), 1)

	w = s.do(t, http.MethodGet, "/productos?tipo=cafe", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeList(t, w)
	require.Len(t, list, 1)
	assert.EqualValues(t, coffeeId, list[0]["id"])

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/productos?tipo=mueble", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/libros?estado=roto", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/cafes/"+itoa(id), nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/libros/abc", nil).Code)

	w = s.do(t, http.MethodPut, "/libros/"+itoa(id), map[string]interface{}{"precio": 45, "stock": 0}, middlewares.UserHeader, "luis")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	product := decode(t, w)["producto"].(map[string]interface{})
	assert.EqualValues(t, 45, product["precio"])
	assert.Equal(t, "agotado", product["estado"])

	w = s.do(t, http.MethodPut, "/libros/"+itoa(id), map[string]interface{}{"estado": "roto"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/historial/"+itoa(id), nil)
	history := decodeList(t, w)
	require.Len(t, history, 2)
	assert.Equal(t, "luis", history[0]["usuario"])

	w = s.do(t, http.MethodDelete, "/libros/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/libros/"+itoa(id), nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/libros/"+itoa(id), nil).Code)
}

func TestClientsAndCollectionsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/clientes", map[string]interface{}{"nombre": "Elena", "saldo_total": 200})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	clientId := int(decode(t, w)["cliente"].(map[string]interface{})["id"].(float64))

	w = s.do(t, http.MethodPost, "/cobros", map[string]interface{}{"cliente_id": clientId, "monto": 50, "metodo": "yape"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 150, body["saldo_total"])
	collectionId := int(body["cobro"].(map[string]interface{})["id"].(float64))

	w = s.do(t, http.MethodGet, "/cobros?cliente_id="+itoa(clientId), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeList(t, w), 1)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, "/clientes/"+itoa(clientId), nil).Code)

	w = s.do(t, http.MethodDelete, "/cobros/"+itoa(collectionId), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 200, decode(t, w)["saldo_total"])

	w = s.do(t, http.MethodPut, "/clientes/"+itoa(clientId), map[string]interface{}{"nombre": "Elena R."})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/clientes/"+itoa(clientId), nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/clientes/"+itoa(clientId), nil).Code)
}

func TestInventoryStatsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	createBook(t, s, "Uno", "LB-11", 10, 2)
	createBook(t, s, "Dos", "LB-12", 5, 0)

	w := s.do(t, http.MethodGet, "/estadisticas/inventario?tipo=libro", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.EqualValues(t, 2, stats["total_productos"])
	assert.EqualValues(t, 1, stats["agotados"])
	assert.EqualValues(t, 20, stats["valor_inventario"])
}

func TestExportSalesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := createBook(t, s, "Emma Zunz", "LB-3", 12, 10)
	w := s.do(t, http.MethodPost, "/ventas", map[string]interface{}{"producto_id": id, "cantidad": 2, "vendedor": "ana"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/ventas/exportar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, reports.ExcelContentType, w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment; filename=ventas_"))

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Ventas")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Emma Zunz", rows[1][4])
	assert.Equal(t, "24", rows[2][7])

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/ventas/exportar?desde=ayer", nil).Code)
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memoryStore) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[name] = data
	return "https://storage.test/" + name, nil
}

func multipartImage(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "foto.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(width, height, color.NRGBA{R: 200, A: 255}), imaging.PNG))
	return buf.Bytes()
}

func postUpload(s *testServer, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/uploads/imagen", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t)

	body, ct := multipartImage(t, pngBytes(t, 400, 300))
	w := postUpload(s, body, ct)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	store := &memoryStore{}
	s.app.objects = store
	body, ct = multipartImage(t, pngBytes(t, 400, 300))
	w = postUpload(s, body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.True(t, strings.HasSuffix(resp["image_url"].(string), ".png"))
	assert.Contains(t, resp["thumbnail_url"], "/thumbnails/")
	require.Len(t, store.objects, 2)
	for name, data := range store.objects {
		if strings.Contains(name, "thumbnails") {
			img, err := imaging.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 200, img.Bounds().Dx())
			assert.Equal(t, 150, img.Bounds().Dy())
		}
	}

	body, ct = multipartImage(t, []byte("%PDF-1.4 not an image"))
	w = postUpload(s, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	store.err = errors.New("bucket missing")
	body, ct = multipartImage(t, pngBytes(t, 10, 10))
	w = postUpload(s, body, ct)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
