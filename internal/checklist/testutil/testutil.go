package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_checklist"
	JWTSecret  = "checklist-test-jwt-secret"
)

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB connects to Postgres with an isolated schema per test. The
// test is skipped when no database is reachable.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()
	if os.Getenv("CHECKLIST_PG_TESTS") == "" {
		t.Skip("set CHECKLIST_PG_TESTS=1 to run Postgres tests")
	}

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("DB_HOST", "127.0.0.1"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "mecanimovil"),
		getEnv("DB_PASSWORD", "mecanimovil"),
		getEnv("DB_NAME", "mecanimovil"))

	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// search_path in the DSN so every pooled connection uses the test schema
	db, err := gorm.Open(postgres.Open(fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			if sqlClean, _ := cleanDB.DB(); sqlClean != nil {
				sqlClean.Close()
			}
		}
	})
	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, proveedorID string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":          userID,
		"uid":          userID,
		"name":         name,
		"proveedor_id": proveedorID,
		"roles":        roles,
		"iss":          "mecanimovil",
		"iat":          now.Unix(),
		"exp":          now.Add(24 * time.Hour).Unix(),
		"jti":          fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default technician
func DefaultTestToken() string {
	return GenerateTestToken("tech-001", "Técnico de prueba", "prov-001", []string{"tecnico"})
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON envelope into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedChecklist loads a four item checklist (km, nota, fotos, firma) and an
// in-progress order "order-1" that uses it.
func SeedChecklist(db *MemDB) {
	lo, hi := 0.0, 300000.0
	one := 1
	db.Defs["cl-1"] = &entity.ChecklistDefinition{ID: "cl-1", Nombre: "Revisión general", Activo: true}
	db.Items["cl-1"] = []entity.ChecklistItemTemplate{
		{ID: "km", ChecklistID: "cl-1", OrdenVisual: 1, TipoPregunta: itemtype.TagKilometerInput, PreguntaTexto: "Kilometraje", EsObligatorio: true, ValorMinimo: &lo, ValorMaximo: &hi},
		{ID: "nota", ChecklistID: "cl-1", OrdenVisual: 2, TipoPregunta: itemtype.TagFinalNotes, PreguntaTexto: "Notas"},
		{ID: "fotos", ChecklistID: "cl-1", OrdenVisual: 3, TipoPregunta: itemtype.TagPhoto, PreguntaTexto: "Fotos", EsObligatorio: true, MinFotos: &one},
		{ID: "firma", ChecklistID: "cl-1", OrdenVisual: 4, TipoPregunta: itemtype.TagSignature, PreguntaTexto: "Firmas", EsObligatorio: true},
	}
	db.Orders["order-1"] = &entity.ServiceOrder{
		ID:          "order-1",
		Codigo:      "OS-0001",
		ProveedorID: "prov-001",
		ChecklistID: "cl-1",
		Estado:      entity.OrdenEstadoEnCurso,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
