package mat4

import (
	"math"
	"testing"
)

const eps = 1e-4

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < eps
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3).Mul(RotateY(0.7))
	if got := m.Mul(Identity()); got != m {
		t.Errorf("m * I = %v, want %v", got, m)
	}
	if got := Identity().Mul(m); got != m {
		t.Errorf("I * m = %v, want %v", got, m)
	}
}

func TestTranslate(t *testing.T) {
	v := Translate(1, 2, 3).MulVec4(Vec4{1, 1, 1, 1})
	want := Vec4{2, 3, 4, 1}
	if v != want {
		t.Errorf("Translate().MulVec4() = %v, want %v", v, want)
	}
}

func TestRotateX(t *testing.T) {
	// Looking straight down: the world up axis points at the camera.
	v := RotateX(math.Pi / 2).MulVec4(Vec4{0, 1, 0, 0})
	if !near(v[0], 0) || !near(v[1], 0) || !near(v[2], 1) {
		t.Errorf("RotateX(90deg) * up = %v, want [0 0 1 0]", v)
	}
}

func TestInverse(t *testing.T) {
	m := Perspective(Radians(30), 1.5, 1, 1000).
		Mul(Translate(0, 0, -500)).
		Mul(RotateX(Radians(45))).
		Mul(RotateY(Radians(20)))
	inv, ok := m.Inverse()
	if !ok {
		t.Fatal("Inverse() ok = false, want true")
	}
	got := m.Mul(inv)
	id := Identity()
	for i := range got {
		if !near(got[i], id[i]) {
			t.Fatalf("m * Inverse(m) = %v, want identity", got)
		}
	}

	if _, ok := (Mat4{}).Inverse(); ok {
		t.Error("zero matrix Inverse() ok = true, want false")
	}
}

func TestPerspectiveDepthRange(t *testing.T) {
	p := Perspective(Radians(60), 1, 2, 200)
	tests := []struct {
		z    float32
		want float32
	}{
		{-2, 0},
		{-200, 1},
	}
	for _, tt := range tests {
		c := p.MulVec4(Vec4{0, 0, tt.z, 1})
		if d := c[2] / c[3]; !near(d, tt.want) {
			t.Errorf("depth(z=%v) = %v, want %v", tt.z, d, tt.want)
		}
	}
}

func TestUnproject(t *testing.T) {
	pv := Perspective(Radians(60), 1, 1, 100).Mul(Translate(0, 0, -10))
	inv, _ := pv.Inverse()
	p := Unproject(inv, 0, 0, 0)
	if !near(p[0], 0) || !near(p[1], 0) || !near(p[2], 9) {
		t.Errorf("Unproject(center, near) = %v, want [0 0 9]", p)
	}
}

func TestTranspose(t *testing.T) {
	m := Translate(4, 5, 6)
	tr := m.Transpose()
	if tr[3] != 4 || tr[7] != 5 || tr[11] != 6 {
		t.Errorf("Transpose() = %v, translation not in last row", tr)
	}
	if tr.Transpose() != m {
		t.Error("Transpose(Transpose(m)) != m")
	}
}
